// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package freesurfer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInfoFromVersionFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
		"bids_freesurfer": {"version": "0.3.1"},
		"freesurfer": {"version": "7.4.1"}
	}`
	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envHome, "")

	vi := Info("dev", dir)
	if vi.FreeSurfer.Version != "7.4.1" {
		t.Errorf("FreeSurfer version = %q, want 7.4.1", vi.FreeSurfer.Version)
	}
	// "dev" build version defers to the VERSION file.
	if vi.App.Version != "0.3.1" {
		t.Errorf("app version = %q, want 0.3.1", vi.App.Version)
	}
	if vi.App.Timestamp == "" {
		t.Error("timestamp not set")
	}
}

func TestInfoLdflagsVersionWins(t *testing.T) {
	dir := t.TempDir()
	content := `{"bids_freesurfer": {"version": "0.3.1"}}`
	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envHome, "")

	vi := Info("1.2.0", dir)
	if vi.App.Version != "1.2.0" {
		t.Errorf("app version = %q, want 1.2.0", vi.App.Version)
	}
}

func TestInfoMissingVersionFile(t *testing.T) {
	t.Setenv(envHome, "")
	vi := Info("dev", t.TempDir())
	if vi.FreeSurfer.Version != "unknown" {
		t.Errorf("FreeSurfer version = %q, want unknown", vi.FreeSurfer.Version)
	}
}

func TestInfoBuildStamp(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "build-stamp.txt"),
		[]byte("freesurfer-linux-7.4.1-20230614\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envHome, home)

	vi := Info("dev", t.TempDir())
	if vi.FreeSurfer.BuildStamp != "freesurfer-linux-7.4.1-20230614" {
		t.Errorf("build stamp = %q", vi.FreeSurfer.BuildStamp)
	}
}
