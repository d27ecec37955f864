// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bids-freesurfer CLI, a BIDS
// App that runs FreeSurfer's recon-all over a BIDS dataset and converts
// the results to NIDM graphs.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neurodataflow/bids-freesurfer/internal/pipeline"
	"github.com/neurodataflow/bids-freesurfer/internal/tool"
	"github.com/neurodataflow/bids-freesurfer/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var logger *zap.Logger

// Analysis levels accepted as the third positional argument.
const (
	levelParticipant = "participant"
	levelSession     = "session"
)

var rootCmd = &cobra.Command{
	Use:   "bids-freesurfer BIDS_DIR OUTPUT_DIR ANALYSIS_LEVEL",
	Short: "FreeSurfer BIDS App with NIDM output",
	Long: `bids-freesurfer runs FreeSurfer's recon-all pipeline on T1w (and
optionally T2w) images from a BIDS dataset, organizes the results as BIDS
derivatives, and converts them to NIDM (RDF) graphs.

BIDS_DIR is the path to the BIDS dataset directory.

OUTPUT_DIR is the path where results will be stored.

ANALYSIS_LEVEL determines the processing stage to be run:
  participant  process a single subject
  session      process a single session for a subject`,
	Args:          cobra.ExactArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runApp,
}

// normalizeFlags lets snake_case spellings (--participant_label) resolve
// to the kebab-case flags, matching other BIDS Apps.
func normalizeFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("bids-freesurfer {{.Version}}\n")

	flags := rootCmd.Flags()
	flags.SetNormalizeFunc(normalizeFlags)
	flags.String("participant-label", "", `label of the participant to analyze, with or without "sub-" prefix (e.g. "001" or "sub-001")`)
	flags.String("session-label", "", `label of the session to analyze, with or without "ses-" prefix; only used with the "session" analysis level`)
	flags.String("fs-license-file", "", "path to FreeSurfer license file")
	flags.String("nidm-input-dir", "", "directory with an existing NIDM graph to augment (default: NIDM/ next to BIDS_DIR)")
	flags.Bool("skip-bids-validation", false, "skip BIDS dataset validation")
	flags.Bool("skip-nidm", false, "skip NIDM output generation")
	flags.Bool("skip-freesurfer", false, "skip recon-all execution and reuse existing outputs")
	flags.Bool("verbose", false, "enable verbose output")

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bids-freesurfer.yaml or ~/.config/bids-freesurfer/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bids-freesurfer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bids-freesurfer"))
		}
	}

	viper.SetEnvPrefix("BIDS_FREESURFER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig assembles the run configuration from positional arguments,
// flags, and the viper config file (flags win).
func buildConfig(cmd *cobra.Command, bidsDir, outputDir string) types.RunConfig {
	flags := cmd.Flags()

	cfg := types.RunConfig{
		BIDSDir:   bidsDir,
		OutputDir: outputDir,
	}
	cfg.ParticipantLabel, _ = flags.GetString("participant-label")
	cfg.SessionLabel, _ = flags.GetString("session-label")
	cfg.Verbose, _ = flags.GetBool("verbose")
	cfg.BIDS.SkipValidation, _ = flags.GetBool("skip-bids-validation")
	cfg.NIDM.Skip, _ = flags.GetBool("skip-nidm")
	cfg.FreeSurfer.Skip, _ = flags.GetBool("skip-freesurfer")

	cfg.FreeSurfer.LicenseFile, _ = flags.GetString("fs-license-file")
	if cfg.FreeSurfer.LicenseFile == "" {
		cfg.FreeSurfer.LicenseFile = viper.GetString("freesurfer.license_file")
	}
	cfg.NIDM.InputDir, _ = flags.GetString("nidm-input-dir")
	if cfg.NIDM.InputDir == "" {
		cfg.NIDM.InputDir = viper.GetString("nidm.input_dir")
	}
	cfg.NIDM.Python = viper.GetString("nidm.python")

	return cfg
}

func runApp(cmd *cobra.Command, args []string) error {
	bidsDir, outputDir, level := args[0], args[1], args[2]

	info, err := os.Stat(bidsDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("BIDS directory %s does not exist", bidsDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	cfg := buildConfig(cmd, bidsDir, outputDir)

	switch level {
	case levelParticipant:
		if cfg.ParticipantLabel == "" {
			return fmt.Errorf("participant label is required for participant-level analysis")
		}
	case levelSession:
		if cfg.ParticipantLabel == "" || cfg.SessionLabel == "" {
			return fmt.Errorf("both participant and session labels are required for session-level analysis")
		}
	default:
		return fmt.Errorf("invalid analysis level %q: must be %q or %q", level, levelParticipant, levelSession)
	}

	p, err := pipeline.New(cfg, tool.Default, logger, version)
	if err != nil {
		return err
	}
	defer p.Close()

	if level == levelParticipant {
		return p.RunParticipant()
	}
	return p.RunSession()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
