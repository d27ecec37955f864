// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bids indexes a BIDS dataset into SQLite and answers entity
// queries against it (subjects, sessions, anatomical images).
package bids

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// descriptionFile is the mandatory dataset metadata file.
const descriptionFile = "dataset_description.json"

// DatasetDescription mirrors the required fields of
// dataset_description.json.
type DatasetDescription struct {
	Name        string `json:"Name"`
	BIDSVersion string `json:"BIDSVersion"`
	DatasetType string `json:"DatasetType,omitempty"`
}

// Layout is an indexed view of a BIDS dataset. All data files are loaded
// into an in-memory SQLite database at open time; queries run against
// the index, never the filesystem.
type Layout struct {
	root        string
	db          *sql.DB
	description *DatasetDescription
}

// Open indexes the dataset rooted at root. When validate is true, the
// dataset must carry a dataset_description.json with Name and
// BIDSVersion set.
func Open(root string, validate bool) (*Layout, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening BIDS dataset %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("BIDS dataset path %s is not a directory", root)
	}

	desc, err := readDescription(root)
	if validate {
		if err != nil {
			return nil, fmt.Errorf("invalid BIDS dataset: %w", err)
		}
		if desc.Name == "" || desc.BIDSVersion == "" {
			return nil, fmt.Errorf("invalid BIDS dataset: %s must set Name and BIDSVersion", descriptionFile)
		}
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	l := &Layout{root: root, db: db, description: desc}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	if err := l.index(); err != nil {
		db.Close()
		return nil, fmt.Errorf("indexing dataset: %w", err)
	}

	return l, nil
}

// Close releases the index database.
func (l *Layout) Close() error {
	return l.db.Close()
}

// Root returns the dataset root directory.
func (l *Layout) Root() string {
	return l.root
}

// Description returns the parsed dataset_description.json, or nil when
// the file was absent (possible only with validation skipped).
func (l *Layout) Description() *DatasetDescription {
	return l.description
}

func readDescription(root string) (*DatasetDescription, error) {
	data, err := os.ReadFile(filepath.Join(root, descriptionFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", descriptionFile, err)
	}
	var desc DatasetDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", descriptionFile, err)
	}
	return &desc, nil
}

func (l *Layout) createSchema() error {
	statements := []string{
		`CREATE TABLE files (
			path TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			session TEXT,
			datatype TEXT,
			suffix TEXT,
			extension TEXT
		)`,
		`CREATE INDEX idx_files_subject ON files(subject)`,
		`CREATE INDEX idx_files_suffix ON files(suffix)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (l *Layout) index() error {
	stmt, err := l.db.Prepare(
		`INSERT OR IGNORE INTO files (path, subject, session, datatype, suffix, extension)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	return filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == l.root {
				return nil
			}
			// Derivatives trees have their own layout rules; stay out.
			if d.Name() == "derivatives" || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		entry, ok := parseEntry(l.root, rel)
		if !ok {
			return nil
		}

		_, err = stmt.Exec(entry.Path, entry.Subject, entry.Session,
			entry.Datatype, entry.Suffix, entry.Extension)
		return err
	})
}

// Subjects returns the sorted subject labels (without "sub-" prefix)
// present in the dataset.
func (l *Layout) Subjects() ([]string, error) {
	return l.queryStrings(
		`SELECT DISTINCT subject FROM files ORDER BY subject`)
}

// Sessions returns the sorted session labels (without "ses-" prefix)
// for one subject. Subjects without sessions yield an empty slice.
func (l *Layout) Sessions(subject string) ([]string, error) {
	return l.queryStrings(
		`SELECT DISTINCT session FROM files
		 WHERE subject = ? AND session <> '' ORDER BY session`, subject)
}

// Images returns the sorted anatomical image paths for a subject with
// the given suffix (e.g. "T1w"). An empty session matches any session.
func (l *Layout) Images(subject, session, suffix string) ([]string, error) {
	q := `SELECT path FROM files
	      WHERE subject = ? AND datatype = 'anat' AND suffix = ?
	        AND extension IN ('.nii', '.nii.gz')`
	args := []any{subject, suffix}
	if session != "" {
		q += ` AND session = ?`
		args = append(args, session)
	}
	q += ` ORDER BY path`
	return l.queryStrings(q, args...)
}

func (l *Layout) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
