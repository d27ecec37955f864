// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline wires the stages of a BIDS App run: output layout,
// environment setup, BIDS indexing, recon-all execution, derivatives
// organization, and NIDM conversion.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurodataflow/bids-freesurfer/internal/bids"
	"github.com/neurodataflow/bids-freesurfer/internal/derivatives"
	"github.com/neurodataflow/bids-freesurfer/internal/freesurfer"
	"github.com/neurodataflow/bids-freesurfer/internal/nidm"
	"github.com/neurodataflow/bids-freesurfer/internal/tool"
	"github.com/neurodataflow/bids-freesurfer/pkg/types"
)

const (
	appDirName     = "freesurfer_bidsapp"
	freesurferDir  = "freesurfer"
	nidmOutputDir  = "nidm"
	defaultNIDMDir = "NIDM"
)

// Pipeline holds the state of one app run.
type Pipeline struct {
	cfg  types.RunConfig
	exec tool.Executor
	log  *zap.Logger

	appDir      string
	subjectsDir string
	nidmDir     string
	nidmInput   string

	layout  *bids.Layout
	wrapper *freesurfer.Wrapper
	version types.VersionInfo
	runID   string
}

// New initializes a run: creates the output tree, configures the
// FreeSurfer environment, indexes the BIDS dataset, and constructs the
// wrapper. appVersion is the build-time version of the binary.
func New(cfg types.RunConfig, execr tool.Executor, log *zap.Logger, appVersion string) (*Pipeline, error) {
	appDir := filepath.Join(cfg.OutputDir, appDirName)
	subjectsDir := filepath.Join(appDir, freesurferDir)
	if err := os.MkdirAll(subjectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	if err := freesurfer.SetupEnv(subjectsDir, cfg.FreeSurfer.LicenseFile); err != nil {
		if !cfg.FreeSurfer.Skip {
			return nil, err
		}
		// recon-all will not run; a missing installation is survivable.
		log.Warn("FreeSurfer environment incomplete", zap.Error(err))
	}

	version := freesurfer.Info(appVersion, ".")
	log.Info("version info",
		zap.String("app", version.App.Version),
		zap.String("freesurfer", version.FreeSurfer.Version),
		zap.String("build_stamp", version.FreeSurfer.BuildStamp))

	layout, err := bids.Open(cfg.BIDSDir, !cfg.BIDS.SkipValidation)
	if err != nil {
		return nil, err
	}
	log.Info("found BIDS dataset", zap.String("path", cfg.BIDSDir))

	wrapper, err := freesurfer.NewWrapper(subjectsDir, execr, log, cfg.FreeSurfer.Skip)
	if err != nil {
		layout.Close()
		return nil, err
	}
	if err := wrapper.CheckDependencies(); err != nil {
		layout.Close()
		return nil, err
	}

	p := &Pipeline{
		cfg:         cfg,
		exec:        execr,
		log:         log,
		appDir:      appDir,
		subjectsDir: subjectsDir,
		nidmDir:     filepath.Join(appDir, nidmOutputDir),
		nidmInput:   resolveNIDMInput(cfg),
		layout:      layout,
		wrapper:     wrapper,
		version:     version,
		runID:       uuid.NewString(),
	}
	return p, nil
}

// resolveNIDMInput returns the configured NIDM input directory, or the
// sibling NIDM/ directory next to the BIDS dataset when it exists.
func resolveNIDMInput(cfg types.RunConfig) string {
	if cfg.NIDM.InputDir != "" {
		return cfg.NIDM.InputDir
	}
	bidsAbs, err := filepath.Abs(cfg.BIDSDir)
	if err != nil {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(bidsAbs), defaultNIDMDir)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// Close releases the BIDS index.
func (p *Pipeline) Close() error {
	return p.layout.Close()
}

// RunParticipant processes a single participant.
func (p *Pipeline) RunParticipant() error {
	participant := strings.TrimPrefix(p.cfg.ParticipantLabel, "sub-")

	subjects, err := p.layout.Subjects()
	if err != nil {
		return err
	}
	if !slices.Contains(subjects, participant) {
		return fmt.Errorf("subject sub-%s not found in dataset", participant)
	}

	return p.process(participant, "")
}

// RunSession processes a single session of a participant.
func (p *Pipeline) RunSession() error {
	participant := strings.TrimPrefix(p.cfg.ParticipantLabel, "sub-")
	session := strings.TrimPrefix(p.cfg.SessionLabel, "ses-")

	subjects, err := p.layout.Subjects()
	if err != nil {
		return err
	}
	if !slices.Contains(subjects, participant) {
		return fmt.Errorf("subject sub-%s not found in dataset", participant)
	}

	sessions, err := p.layout.Sessions(participant)
	if err != nil {
		return err
	}
	if !slices.Contains(sessions, session) {
		return fmt.Errorf("session ses-%s not found for subject sub-%s", session, participant)
	}

	return p.process(participant, session)
}

func (p *Pipeline) process(participant, session string) error {
	ok, runErr := p.wrapper.ProcessSubject(p.layout, participant, session)

	if _, err := p.wrapper.SaveSummary(p.wrapper.Summary(p.runID, p.version)); err != nil {
		p.log.Warn("could not save processing summary", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	bidsVersion := ""
	if desc := p.layout.Description(); desc != nil {
		bidsVersion = desc.BIDSVersion
	}

	if ok {
		if err := derivatives.Organize(p.appDir, p.subjectsDir, participant, session, p.log); err != nil {
			p.log.Warn("could not organize derivatives", zap.Error(err))
		}
		if err := derivatives.WriteDescription(p.appDir, "FreeSurfer Derivatives", bidsVersion, p.version); err != nil {
			p.log.Warn("could not write dataset description", zap.Error(err))
		}
		if err := derivatives.WriteReadme(p.appDir); err != nil {
			p.log.Warn("could not write README", zap.Error(err))
		}
	}

	if ok && !p.cfg.NIDM.Skip {
		conv := nidm.NewConverter(p.nidmDir, p.nidmInput, p.cfg.NIDM.Python, p.exec, p.log)
		fsid := freesurfer.FSSubjectID(participant, session)
		if err := conv.Convert(p.subjectsDir, fsid); err != nil {
			return err
		}
		if err := derivatives.WriteDescription(p.nidmDir, "NIDM Results", bidsVersion, p.version); err != nil {
			p.log.Warn("could not write NIDM dataset description", zap.Error(err))
		}
	}

	p.log.Info("processing complete")
	return nil
}
