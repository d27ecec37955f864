// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package freesurfer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/neurodataflow/bids-freesurfer/pkg/types"
)

// versionFile is the JSON file recording pinned component versions,
// written by the container build.
const versionFile = "VERSION"

type versionFileData struct {
	App struct {
		Version string `json:"version"`
	} `json:"bids_freesurfer"`
	FreeSurfer struct {
		Version string `json:"version"`
	} `json:"freesurfer"`
}

// readVersionFile parses the VERSION file in dir. Missing or malformed
// files yield zero values.
func readVersionFile(dir string) versionFileData {
	var data versionFileData
	raw, err := os.ReadFile(filepath.Join(dir, versionFile))
	if err != nil {
		return data
	}
	_ = json.Unmarshal(raw, &data)
	return data
}

// readBuildStamp returns the contents of $FREESURFER_HOME/build-stamp.txt,
// or empty when unavailable.
func readBuildStamp() string {
	home := os.Getenv(envHome)
	if home == "" {
		return ""
	}
	raw, err := os.ReadFile(filepath.Join(home, "build-stamp.txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// Info collects version information for the app and the FreeSurfer
// installation. appVersion is the build-time version of this binary;
// versionDir is the directory holding the optional VERSION file.
func Info(appVersion, versionDir string) types.VersionInfo {
	vi := types.VersionInfo{
		App: types.AppVersionInfo{
			Version:   appVersion,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		FreeSurfer: types.FreeSurferVersionInfo{
			Version: "unknown",
		},
	}

	data := readVersionFile(versionDir)
	if data.FreeSurfer.Version != "" {
		vi.FreeSurfer.Version = data.FreeSurfer.Version
	}
	if vi.App.Version == "" || vi.App.Version == "dev" {
		if data.App.Version != "" {
			vi.App.Version = data.App.Version
		}
	}
	vi.FreeSurfer.BuildStamp = readBuildStamp()

	return vi
}
