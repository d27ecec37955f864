// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bids

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataset creates a minimal BIDS dataset on disk. files are paths
// relative to the dataset root; each is created empty.
func writeDataset(t *testing.T, desc *DatasetDescription, files ...string) string {
	t.Helper()
	root := t.TempDir()

	if desc != nil {
		data, err := json.Marshal(desc)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, descriptionFile), data, 0o644))
	}

	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte{}, 0o644))
	}
	return root
}

var validDesc = &DatasetDescription{Name: "Test Dataset", BIDSVersion: "1.8.0"}

func TestOpenValidation(t *testing.T) {
	tests := []struct {
		name     string
		desc     *DatasetDescription
		validate bool
		wantErr  bool
	}{
		{name: "valid description", desc: validDesc, validate: true},
		{name: "missing description", desc: nil, validate: true, wantErr: true},
		{name: "missing description skipped", desc: nil, validate: false},
		{name: "empty name", desc: &DatasetDescription{BIDSVersion: "1.8.0"}, validate: true, wantErr: true},
		{name: "empty version", desc: &DatasetDescription{Name: "x"}, validate: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeDataset(t, tt.desc, "sub-01/anat/sub-01_T1w.nii.gz")

			layout, err := Open(root, tt.validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer layout.Close()
			assert.Equal(t, root, layout.Root())
		})
	}
}

func TestOpenMissingRoot(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), false)
	assert.Error(t, err)
}

func TestSubjectsAndSessions(t *testing.T) {
	root := writeDataset(t, validDesc,
		"sub-01/ses-pre/anat/sub-01_ses-pre_T1w.nii.gz",
		"sub-01/ses-post/anat/sub-01_ses-post_T1w.nii.gz",
		"sub-02/anat/sub-02_T1w.nii.gz",
		"sub-03/anat/sub-03_T2w.nii.gz",
	)
	layout, err := Open(root, true)
	require.NoError(t, err)
	defer layout.Close()

	subjects, err := layout.Subjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02", "03"}, subjects)

	sessions, err := layout.Sessions("01")
	require.NoError(t, err)
	assert.Equal(t, []string{"post", "pre"}, sessions)

	sessions, err = layout.Sessions("02")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	sessions, err = layout.Sessions("missing")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestImages(t *testing.T) {
	root := writeDataset(t, validDesc,
		"sub-01/anat/sub-01_run-1_T1w.nii.gz",
		"sub-01/anat/sub-01_run-2_T1w.nii.gz",
		"sub-01/anat/sub-01_T2w.nii.gz",
		"sub-01/anat/sub-01_T1w.json", // sidecar, not an image
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
		"sub-02/ses-a/anat/sub-02_ses-a_T1w.nii",
		"sub-02/ses-b/anat/sub-02_ses-b_T1w.nii",
	)
	layout, err := Open(root, true)
	require.NoError(t, err)
	defer layout.Close()

	t1w, err := layout.Images("01", "", "T1w")
	require.NoError(t, err)
	require.Len(t, t1w, 2)
	assert.Contains(t, t1w[0], "run-1")
	assert.Contains(t, t1w[1], "run-2")

	t2w, err := layout.Images("01", "", "T2w")
	require.NoError(t, err)
	assert.Len(t, t2w, 1)

	// Session filter narrows to one image.
	sesA, err := layout.Images("02", "a", "T1w")
	require.NoError(t, err)
	require.Len(t, sesA, 1)
	assert.Contains(t, sesA[0], "ses-a")

	// No match yields empty, not error.
	none, err := layout.Images("01", "zz", "T1w")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDerivativesExcluded(t *testing.T) {
	root := writeDataset(t, validDesc,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"derivatives/fmriprep/sub-01/anat/sub-01_desc-preproc_T1w.nii.gz",
	)
	layout, err := Open(root, true)
	require.NoError(t, err)
	defer layout.Close()

	t1w, err := layout.Images("01", "", "T1w")
	require.NoError(t, err)
	assert.Len(t, t1w, 1)
	assert.NotContains(t, t1w[0], "derivatives")
}

func TestDescription(t *testing.T) {
	root := writeDataset(t, validDesc, "sub-01/anat/sub-01_T1w.nii.gz")
	layout, err := Open(root, true)
	require.NoError(t, err)
	defer layout.Close()

	desc := layout.Description()
	require.NotNil(t, desc)
	assert.Equal(t, "Test Dataset", desc.Name)
	assert.Equal(t, "1.8.0", desc.BIDSVersion)
}
