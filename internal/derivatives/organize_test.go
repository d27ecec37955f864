// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package derivatives

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/neurodataflow/bids-freesurfer/pkg/types"
)

// setupSubject creates a fake recon-all output tree for fsid and returns
// (appDir, subjectsDir).
func setupSubject(t *testing.T, fsid string, mriFiles, statFiles []string) (string, string) {
	t.Helper()
	appDir := t.TempDir()
	subjectsDir := filepath.Join(appDir, "freesurfer")

	for _, f := range mriFiles {
		path := filepath.Join(subjectsDir, fsid, "mri", f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("volume"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range statFiles {
		path := filepath.Join(subjectsDir, fsid, "stats", f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("stats"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return appDir, subjectsDir
}

func TestOrganizeSingleSession(t *testing.T) {
	appDir, subjectsDir := setupSubject(t, "sub-001",
		[]string{"brain.mgz", "aparc.DKTatlas+aseg.mgz", "wmparc.mgz"},
		[]string{"aseg.stats", "lh.aparc.stats"},
	)

	if err := Organize(appDir, subjectsDir, "001", "", zap.NewNop()); err != nil {
		t.Fatalf("Organize: %v", err)
	}

	wantFiles := []string{
		"sub-001/anat/sub-001_desc-brain_T1w.nii.gz",
		"sub-001/anat/sub-001_desc-aparcaseg_dseg.nii.gz",
		"sub-001/anat/sub-001_desc-wmparc_dseg.nii.gz",
		"sub-001/stats/sub-001_aseg.stats",
		"sub-001/stats/sub-001_lh.aparc.stats",
	}
	for _, f := range wantFiles {
		if _, err := os.Stat(filepath.Join(appDir, filepath.FromSlash(f))); err != nil {
			t.Errorf("expected output %s missing: %v", f, err)
		}
	}
}

func TestOrganizeWithSession(t *testing.T) {
	appDir, subjectsDir := setupSubject(t, "sub-001_ses-01",
		[]string{"brain.mgz"}, nil)

	if err := Organize(appDir, subjectsDir, "001", "01", zap.NewNop()); err != nil {
		t.Fatalf("Organize: %v", err)
	}

	want := "sub-001/ses-01/anat/sub-001_ses-01_desc-brain_T1w.nii.gz"
	if _, err := os.Stat(filepath.Join(appDir, filepath.FromSlash(want))); err != nil {
		t.Errorf("expected output %s missing: %v", want, err)
	}
}

func TestOrganizeMissingVolumesSkipped(t *testing.T) {
	appDir, subjectsDir := setupSubject(t, "sub-001", []string{"brain.mgz"}, nil)

	if err := Organize(appDir, subjectsDir, "001", "", zap.NewNop()); err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(appDir, "sub-001", "anat",
		"sub-001_desc-wmparc_dseg.nii.gz")); err == nil {
		t.Error("wmparc output exists despite missing source volume")
	}
}

func TestOrganizeMissingSubjectDir(t *testing.T) {
	appDir := t.TempDir()
	err := Organize(appDir, filepath.Join(appDir, "freesurfer"), "001", "", zap.NewNop())
	if err == nil {
		t.Error("Organize with missing subject directory succeeded, want error")
	}
}

func TestWriteDescription(t *testing.T) {
	dir := t.TempDir()
	vi := types.VersionInfo{
		App:        types.AppVersionInfo{Version: "1.0.0"},
		FreeSurfer: types.FreeSurferVersionInfo{Version: "7.4.1"},
	}

	if err := WriteDescription(dir, "FreeSurfer Derivatives", "", vi); err != nil {
		t.Fatalf("WriteDescription: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dataset_description.json"))
	if err != nil {
		t.Fatal(err)
	}
	var desc Description
	if err := json.Unmarshal(data, &desc); err != nil {
		t.Fatal(err)
	}

	if desc.DatasetType != "derivative" {
		t.Errorf("DatasetType = %q, want derivative", desc.DatasetType)
	}
	if desc.BIDSVersion != DefaultBIDSVersion {
		t.Errorf("BIDSVersion = %q, want %q", desc.BIDSVersion, DefaultBIDSVersion)
	}
	if len(desc.GeneratedBy) != 2 {
		t.Fatalf("GeneratedBy has %d entries, want 2", len(desc.GeneratedBy))
	}
	if desc.GeneratedBy[0].Name != "FreeSurfer" || desc.GeneratedBy[0].Version != "7.4.1" {
		t.Errorf("GeneratedBy[0] = %+v", desc.GeneratedBy[0])
	}

	// Idempotent: a second call must not overwrite.
	if err := os.WriteFile(filepath.Join(dir, "dataset_description.json"), []byte(`{"Name":"edited"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteDescription(dir, "FreeSurfer Derivatives", "", vi); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "dataset_description.json"))
	if string(data) != `{"Name":"edited"}` {
		t.Error("WriteDescription overwrote an existing file")
	}
}

func TestWriteReadme(t *testing.T) {
	dir := t.TempDir()
	if err := WriteReadme(dir); err != nil {
		t.Fatalf("WriteReadme: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "README"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("README is empty")
	}
}
