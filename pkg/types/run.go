// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ProcessingStatus indicates the outcome of a recon-all run for one subject.
type ProcessingStatus string

const (
	ProcessingSuccess ProcessingStatus = "success"
	ProcessingFailed  ProcessingStatus = "failed"
	ProcessingSkipped ProcessingStatus = "skipped"
)

// SubjectImages holds the anatomical inputs selected for one FreeSurfer
// subject, as resolved from the BIDS layout.
type SubjectImages struct {
	// T1w lists the T1-weighted image paths, in layout order.
	T1w []string `json:"T1w_images" yaml:"T1w_images"`

	// T2w lists the T2-weighted image paths; only the first is passed
	// to recon-all.
	T2w []string `json:"T2w_images,omitempty" yaml:"T2w_images,omitempty"`

	// Session is the BIDS session label, without the "ses-" prefix.
	// Empty when the dataset has no sessions or a whole-subject run.
	Session string `json:"session,omitempty" yaml:"session,omitempty"`
}

// AppVersionInfo describes this application build.
type AppVersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// FreeSurferVersionInfo describes the FreeSurfer installation in use.
type FreeSurferVersionInfo struct {
	Version    string `json:"version" yaml:"version"`
	BuildStamp string `json:"build_stamp,omitempty" yaml:"build_stamp,omitempty"`
}

// VersionInfo aggregates version information recorded with every run.
type VersionInfo struct {
	App        AppVersionInfo        `json:"bids_freesurfer" yaml:"bids_freesurfer"`
	FreeSurfer FreeSurferVersionInfo `json:"freesurfer" yaml:"freesurfer"`
}

// ProcessingSummary is the per-run report written to
// processing_summary.json in the FreeSurfer subjects directory.
type ProcessingSummary struct {
	RunID       string      `json:"run_id"`
	Total       int         `json:"total"`
	Success     int         `json:"success"`
	Failure     int         `json:"failure"`
	Skipped     int         `json:"skipped"`
	SuccessList []string    `json:"success_list"`
	FailureList []string    `json:"failure_list"`
	SkippedList []string    `json:"skipped_list"`
	VersionInfo VersionInfo `json:"version_info"`
}

// Provenance is the per-subject record of what was run, written as YAML
// next to the FreeSurfer subject directory.
type Provenance struct {
	SubjectID  string           `yaml:"subject_id"`
	Session    string           `yaml:"session,omitempty"`
	T1w        []string         `yaml:"t1w"`
	T2w        []string         `yaml:"t2w,omitempty"`
	Command    []string         `yaml:"command"`
	StartedAt  time.Time        `yaml:"started_at"`
	FinishedAt time.Time        `yaml:"finished_at"`
	Status     ProcessingStatus `yaml:"status"`
}
