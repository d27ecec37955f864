// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bids

import (
	"path/filepath"
	"strings"
)

// Entry is one indexed data file with its parsed BIDS entities.
type Entry struct {
	// Path is the absolute path to the file.
	Path string

	// Subject is the subject label, without the "sub-" prefix.
	Subject string

	// Session is the session label, without the "ses-" prefix; empty
	// when the file is not inside a session directory.
	Session string

	// Datatype is the modality directory name (e.g. "anat", "func").
	Datatype string

	// Suffix is the final underscore-separated component of the
	// filename before the extension (e.g. "T1w").
	Suffix string

	// Extension includes the leading dot; ".nii.gz" is kept as one unit.
	Extension string
}

// splitExtension separates a BIDS filename into stem and extension,
// treating the compound ".nii.gz" as a single extension.
func splitExtension(name string) (stem, ext string) {
	if strings.HasSuffix(name, ".nii.gz") {
		return strings.TrimSuffix(name, ".nii.gz"), ".nii.gz"
	}
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// parseEntry parses the relative path of a file inside a BIDS dataset.
// It returns false for paths that are not subject data files (top-level
// metadata, hidden files, derivatives trees).
func parseEntry(root, rel string) (Entry, bool) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "sub-") {
		return Entry{}, false
	}

	e := Entry{
		Path:    filepath.Join(root, rel),
		Subject: strings.TrimPrefix(parts[0], "sub-"),
	}

	rest := parts[1:]
	if strings.HasPrefix(rest[0], "ses-") {
		e.Session = strings.TrimPrefix(rest[0], "ses-")
		rest = rest[1:]
	}
	if len(rest) < 2 {
		// Data files live inside a datatype directory.
		return Entry{}, false
	}
	e.Datatype = rest[0]

	name := rest[len(rest)-1]
	if strings.HasPrefix(name, ".") {
		return Entry{}, false
	}

	stem, ext := splitExtension(name)
	e.Extension = ext

	// The suffix is the last underscore component; everything before it
	// is key-value entities (sub-, ses-, run-, acq-, ...).
	fields := strings.Split(stem, "_")
	last := fields[len(fields)-1]
	if strings.Contains(last, "-") && len(fields) > 1 {
		// Filenames ending in an entity pair have no suffix; skip them.
		return Entry{}, false
	}
	e.Suffix = last

	return e, true
}
