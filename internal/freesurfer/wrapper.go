// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package freesurfer wraps FreeSurfer's recon-all: environment and
// license setup, command construction, skip-if-done handling, and
// per-run result tracking.
package freesurfer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/neurodataflow/bids-freesurfer/internal/bids"
	"github.com/neurodataflow/bids-freesurfer/internal/tool"
	"github.com/neurodataflow/bids-freesurfer/pkg/types"
)

const (
	reconAllBin = "recon-all"
	summaryFile = "processing_summary.json"
	doneMarker  = "recon-all.done"
)

// FSSubjectID builds the FreeSurfer subject directory name for a
// participant and optional session (labels without prefixes).
func FSSubjectID(participant, session string) string {
	if session == "" {
		return "sub-" + participant
	}
	return fmt.Sprintf("sub-%s_ses-%s", participant, session)
}

// Wrapper drives recon-all for subjects of one BIDS dataset.
type Wrapper struct {
	subjectsDir string
	exec        tool.Executor
	log         *zap.Logger
	skipRecon   bool

	success []string
	failure []string
	skipped []string
	images  map[string]types.SubjectImages
}

// NewWrapper creates a wrapper whose recon-all outputs go to
// subjectsDir (the SUBJECTS_DIR). skipRecon reuses existing outputs
// without invoking recon-all.
func NewWrapper(subjectsDir string, execr tool.Executor, log *zap.Logger, skipRecon bool) (*Wrapper, error) {
	if err := os.MkdirAll(subjectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating subjects directory: %w", err)
	}
	return &Wrapper{
		subjectsDir: subjectsDir,
		exec:        execr,
		log:         log,
		skipRecon:   skipRecon,
		images:      make(map[string]types.SubjectImages),
	}, nil
}

// SubjectsDir returns the FreeSurfer subjects directory.
func (w *Wrapper) SubjectsDir() string {
	return w.subjectsDir
}

// CheckDependencies verifies that recon-all is on PATH. It is a no-op
// when recon-all execution is skipped.
func (w *Wrapper) CheckDependencies() error {
	if w.skipRecon {
		return nil
	}
	if _, err := w.exec.LookPath(reconAllBin); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", reconAllBin, err)
	}
	return nil
}

// command builds the recon-all invocation for one subject.
func (w *Wrapper) command(fsid string, imgs types.SubjectImages) []string {
	cmd := []string{reconAllBin, "-subjid", fsid}
	for _, t1 := range imgs.T1w {
		cmd = append(cmd, "-i", t1)
	}
	if len(imgs.T2w) > 0 {
		cmd = append(cmd, "-T2", imgs.T2w[0], "-T2pial")
	}
	cmd = append(cmd, "-all")
	return cmd
}

// doneMarkerPath is the sentinel recon-all writes on completion.
func (w *Wrapper) doneMarkerPath(fsid string) string {
	return filepath.Join(w.subjectsDir, fsid, "scripts", doneMarker)
}

// ProcessSubject runs recon-all for one participant (and optional
// session). It returns true when the subject ended in a usable state
// (fresh run, already done, or recon-all skipped by configuration); a
// missing-input or failed run returns false. The error carries the
// failure detail and is nil for the no-T1w case, which is recorded as
// skipped.
func (w *Wrapper) ProcessSubject(layout *bids.Layout, participant, session string) (bool, error) {
	fsid := FSSubjectID(participant, session)
	w.log.Info("processing subject", zap.String("subject", fsid))

	t1w, err := layout.Images(participant, session, "T1w")
	if err != nil {
		w.failure = append(w.failure, fsid)
		return false, fmt.Errorf("querying T1w images for %s: %w", fsid, err)
	}
	if len(t1w) == 0 {
		w.log.Warn("no T1w images found", zap.String("subject", fsid))
		w.skipped = append(w.skipped, fsid)
		return false, nil
	}

	imgs := types.SubjectImages{T1w: t1w, Session: session}
	if t2w, err := layout.Images(participant, session, "T2w"); err == nil && len(t2w) > 0 {
		w.log.Info("found T2w images", zap.String("subject", fsid), zap.Int("count", len(t2w)))
		imgs.T2w = t2w
	}
	w.images[fsid] = imgs

	if w.skipRecon {
		w.log.Info("recon-all execution disabled; reusing existing outputs",
			zap.String("subject", fsid))
		w.skipped = append(w.skipped, fsid)
		return true, nil
	}

	if _, err := os.Stat(w.doneMarkerPath(fsid)); err == nil {
		w.log.Info("already processed, skipping", zap.String("subject", fsid))
		w.skipped = append(w.skipped, fsid)
		return true, nil
	}

	cmd := w.command(fsid, imgs)
	w.log.Info("running recon-all", zap.Strings("command", cmd))

	started := time.Now().UTC()
	res, runErr := w.exec.RunCaptured(tool.Spec{Name: cmd[0], Args: cmd[1:]})
	finished := time.Now().UTC()

	status := types.ProcessingSuccess
	if runErr != nil {
		status = types.ProcessingFailed
	}
	if err := w.writeProvenance(fsid, imgs, cmd, started, finished, status); err != nil {
		w.log.Warn("could not write provenance record", zap.Error(err))
	}

	if runErr != nil {
		w.failure = append(w.failure, fsid)
		return false, fmt.Errorf("recon-all failed for %s: %w (stderr: %s)", fsid, runErr, res.Stderr)
	}

	w.success = append(w.success, fsid)
	w.log.Info("successfully processed", zap.String("subject", fsid))
	return true, nil
}

// writeProvenance records what was run for one subject as YAML next to
// the subject directory.
func (w *Wrapper) writeProvenance(fsid string, imgs types.SubjectImages, cmd []string, started, finished time.Time, status types.ProcessingStatus) error {
	record := types.Provenance{
		SubjectID:  fsid,
		Session:    imgs.Session,
		T1w:        imgs.T1w,
		T2w:        imgs.T2w,
		Command:    cmd,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     status,
	}
	data, err := yaml.Marshal(&record)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.subjectsDir, fsid+"_provenance.yaml"), data, 0o644)
}

// Images returns the input images recorded for a FreeSurfer subject ID,
// or a zero value when the subject was never processed.
func (w *Wrapper) Images(fsid string) types.SubjectImages {
	return w.images[fsid]
}

// Summary builds the processing summary for this run.
func (w *Wrapper) Summary(runID string, vi types.VersionInfo) types.ProcessingSummary {
	return types.ProcessingSummary{
		RunID:       runID,
		Total:       len(w.success) + len(w.failure) + len(w.skipped),
		Success:     len(w.success),
		Failure:     len(w.failure),
		Skipped:     len(w.skipped),
		SuccessList: append([]string{}, w.success...),
		FailureList: append([]string{}, w.failure...),
		SkippedList: append([]string{}, w.skipped...),
		VersionInfo: vi,
	}
}

// SaveSummary writes the processing summary as JSON into the subjects
// directory and returns its path.
func (w *Wrapper) SaveSummary(summary types.ProcessingSummary) (string, error) {
	path := filepath.Join(w.subjectsDir, summaryFile)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding processing summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing processing summary: %w", err)
	}
	w.log.Info("processing summary saved", zap.String("path", path))
	return path, nil
}
