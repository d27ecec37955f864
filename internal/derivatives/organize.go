// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package derivatives arranges recon-all outputs into a BIDS-derivatives
// tree: renamed anatomical volumes, stats tables, and the dataset-level
// metadata files.
package derivatives

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/neurodataflow/bids-freesurfer/internal/freesurfer"
	"github.com/neurodataflow/bids-freesurfer/pkg/types"
)

const (
	descriptionFile = "dataset_description.json"
	readmeFile      = "README"

	// DefaultBIDSVersion is used when the input dataset does not state one.
	DefaultBIDSVersion = "1.8.0"
)

// mriCopies maps recon-all volume outputs to their derivative filename
// templates (%s is "sub-X" or "sub-X_ses-Y").
var mriCopies = map[string]string{
	"brain.mgz":               "%s_desc-brain_T1w.nii.gz",
	"aparc.DKTatlas+aseg.mgz": "%s_desc-aparcaseg_dseg.nii.gz",
	"wmparc.mgz":              "%s_desc-wmparc_dseg.nii.gz",
}

// GeneratedBy is one pipeline entry in a derivative dataset description.
type GeneratedBy struct {
	Name        string `json:"Name"`
	Version     string `json:"Version"`
	Description string `json:"Description,omitempty"`
}

// Description is the derivative dataset_description.json payload.
type Description struct {
	Name        string        `json:"Name"`
	BIDSVersion string        `json:"BIDSVersion"`
	DatasetType string        `json:"DatasetType"`
	GeneratedBy []GeneratedBy `json:"GeneratedBy"`
}

// Organize copies the FreeSurfer outputs for one subject into the
// BIDS-derivatives tree rooted at appDir. Missing source volumes are
// skipped; a missing subject directory is an error.
func Organize(appDir, subjectsDir, participant, session string, log *zap.Logger) error {
	fsid := freesurfer.FSSubjectID(participant, session)
	fsSubjectDir := filepath.Join(subjectsDir, fsid)
	if _, err := os.Stat(fsSubjectDir); err != nil {
		return fmt.Errorf("FreeSurfer subject directory not found: %s", fsSubjectDir)
	}

	subjectDir := filepath.Join(appDir, "sub-"+participant)
	namePrefix := "sub-" + participant
	if session != "" {
		subjectDir = filepath.Join(subjectDir, "ses-"+session)
		namePrefix += "_ses-" + session
	}

	anatDir := filepath.Join(subjectDir, "anat")
	statsDir := filepath.Join(subjectDir, "stats")
	for _, dir := range []string{anatDir, statsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	for src, tmpl := range mriCopies {
		srcPath := filepath.Join(fsSubjectDir, "mri", src)
		destPath := filepath.Join(anatDir, fmt.Sprintf(tmpl, namePrefix))
		copied, err := copyFile(srcPath, destPath)
		if err != nil {
			return fmt.Errorf("copying %s: %w", src, err)
		}
		if !copied {
			log.Debug("volume not present, skipping", zap.String("file", srcPath))
		}
	}

	statFiles, err := filepath.Glob(filepath.Join(fsSubjectDir, "stats", "*.stats"))
	if err != nil {
		return err
	}
	for _, stat := range statFiles {
		dest := filepath.Join(statsDir, namePrefix+"_"+filepath.Base(stat))
		if _, err := copyFile(stat, dest); err != nil {
			return fmt.Errorf("copying %s: %w", stat, err)
		}
	}

	return nil
}

// copyFile copies src to dest when src exists. The bool reports whether
// a copy happened.
func copyFile(src, dest string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return false, err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return false, err
	}
	return true, out.Close()
}

// WriteDescription creates the derivative dataset_description.json at
// dir when absent.
func WriteDescription(dir, name, bidsVersion string, vi types.VersionInfo) error {
	path := filepath.Join(dir, descriptionFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if bidsVersion == "" {
		bidsVersion = DefaultBIDSVersion
	}

	desc := Description{
		Name:        name,
		BIDSVersion: bidsVersion,
		DatasetType: "derivative",
		GeneratedBy: []GeneratedBy{
			{
				Name:        "FreeSurfer",
				Version:     vi.FreeSurfer.Version,
				Description: "FreeSurfer cortical reconstruction and parcellation",
			},
			{
				Name:        "bids-freesurfer",
				Version:     vi.App.Version,
				Description: "BIDS App for FreeSurfer with NIDM output",
			},
		},
	}

	data, err := json.MarshalIndent(&desc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

const readmeText = `FreeSurfer Derivatives
====================

This directory contains FreeSurfer derivatives organized according to the BIDS specification.
The following files are included:
- Brain-extracted T1w images
- Cortical parcellation (aparc+aseg)
- White matter parcellation (wmparc)
- Statistical measurements in the stats directory

For more information about FreeSurfer, visit: http://surfer.nmr.mgh.harvard.edu/
`

// WriteReadme creates the derivatives README at dir when absent.
func WriteReadme(dir string) error {
	path := filepath.Join(dir, readmeFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(readmeText), 0o644)
}
