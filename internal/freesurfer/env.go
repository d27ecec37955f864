// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package freesurfer

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envHome        = "FREESURFER_HOME"
	envSubjectsDir = "SUBJECTS_DIR"
	envLicense     = "FS_LICENSE"
	envAllowDeep   = "FS_ALLOW_DEEP"
)

// licenseLocations returns the standard places a FreeSurfer license may
// live, in search order.
func licenseLocations() []string {
	locations := []string{
		"/license.txt", // Docker mount location
	}
	if home := os.Getenv(envHome); home != "" {
		locations = append(locations, filepath.Join(home, "license.txt"))
	}
	if userHome, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(userHome, ".freesurfer.txt"))
	}
	return locations
}

// FindLicense resolves the FreeSurfer license file. An explicit path
// must exist; otherwise the standard locations are searched.
func FindLicense(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("FreeSurfer license not found at %s: %w", explicit, err)
		}
		return explicit, nil
	}

	for _, loc := range licenseLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}
	return "", fmt.Errorf("FreeSurfer license not found; specify one with --fs-license-file")
}

// SetupEnv prepares the process environment for recon-all: requires
// FREESURFER_HOME, points SUBJECTS_DIR at subjectsDir, resolves the
// license, and enables the ML routines.
func SetupEnv(subjectsDir, licenseFile string) error {
	if os.Getenv(envHome) == "" {
		return fmt.Errorf("%s environment variable not set", envHome)
	}

	license, err := FindLicense(licenseFile)
	if err != nil {
		return err
	}

	os.Setenv(envSubjectsDir, subjectsDir)
	os.Setenv(envLicense, license)
	os.Setenv(envAllowDeep, "1")
	return nil
}
