// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FreeSurferConfig holds settings for the recon-all stage.
type FreeSurferConfig struct {
	// LicenseFile is the path to the FreeSurfer license file. When empty,
	// standard locations are searched (/license.txt, $FREESURFER_HOME/license.txt,
	// ~/.freesurfer.txt).
	LicenseFile string `json:"license_file,omitempty" yaml:"license_file,omitempty"`

	// Skip bypasses recon-all execution; existing outputs under the
	// subjects directory are reused as-is.
	Skip bool `json:"skip" yaml:"skip"`
}

// NIDMConfig holds settings for the NIDM conversion stage.
type NIDMConfig struct {
	// Skip disables NIDM output generation entirely.
	Skip bool `json:"skip" yaml:"skip"`

	// InputDir is a directory holding an existing NIDM graph to augment
	// (default: sibling NIDM/ directory next to the BIDS dataset).
	InputDir string `json:"input_dir,omitempty" yaml:"input_dir,omitempty"`

	// Python is the interpreter used to run the fs_to_nidm converter
	// module (default "python3").
	Python string `json:"python" yaml:"python"`
}

// BIDSConfig holds settings for BIDS dataset loading.
type BIDSConfig struct {
	// SkipValidation disables the dataset_description.json check.
	SkipValidation bool `json:"skip_validation" yaml:"skip_validation"`
}

// RunConfig groups all stage configurations for a single app run.
type RunConfig struct {
	// BIDSDir is the root of the input BIDS dataset.
	BIDSDir string `json:"bids_dir" yaml:"bids_dir"`

	// OutputDir is the root output directory; the app writes under
	// OutputDir/freesurfer_bidsapp/.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// ParticipantLabel is the subject to process, without the "sub-" prefix.
	ParticipantLabel string `json:"participant_label" yaml:"participant_label"`

	// SessionLabel is the session to process, without the "ses-" prefix.
	// Empty for participant-level runs.
	SessionLabel string `json:"session_label,omitempty" yaml:"session_label,omitempty"`

	// Verbose enables debug logging.
	Verbose bool `json:"verbose" yaml:"verbose"`

	BIDS       BIDSConfig       `json:"bids" yaml:"bids"`
	FreeSurfer FreeSurferConfig `json:"freesurfer" yaml:"freesurfer"`
	NIDM       NIDMConfig       `json:"nidm" yaml:"nidm"`
}

// DefaultPython is the converter interpreter used when NIDMConfig.Python
// is unset.
const DefaultPython = "python3"
