// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package nidm shells out to the segstats_jsonld fs_to_nidm converter
// and aggregates its RDF outputs with any pre-existing NIDM graph into
// per-subject Turtle and JSON-LD files.
package nidm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/neurodataflow/bids-freesurfer/internal/tool"
	"github.com/neurodataflow/bids-freesurfer/pkg/types"
)

const (
	// converterModule is the Python module invoked for the conversion.
	converterModule = "segstats_jsonld.fs_to_nidm"

	// primaryInput is the preferred filename for an existing NIDM graph.
	primaryInput = "nidm.ttl"
)

// inputPatterns are the fallback globs for discovering an existing NIDM
// file, in preference order.
var inputPatterns = []string{"*.ttl", "*.jsonld", "*.json-ld"}

// converterEnv is the extra environment the converter module requires.
var converterEnv = []string{
	"RDFLIB_STORE_NO_BIND_OVERRIDE=1",
	"SEGSTATS_JSONLD_ALLOW_NEW_KEYS=1",
}

// aggregateExts are the extensions of converter outputs that join the
// merged graph.
var aggregateExts = map[string]bool{
	".ttl":     true,
	".json":    true,
	".jsonld":  true,
	".json-ld": true,
}

// Converter runs fs_to_nidm for FreeSurfer subjects and writes merged
// NIDM graphs into the output directory.
type Converter struct {
	nidmDir  string
	inputDir string
	python   string
	exec     tool.Executor
	log      *zap.Logger
}

// NewConverter creates a converter writing into nidmDir. inputDir may
// point at existing NIDM resources to augment; empty or missing
// directories are ignored. python selects the interpreter (default
// "python3").
func NewConverter(nidmDir, inputDir, python string, execr tool.Executor, log *zap.Logger) *Converter {
	if python == "" {
		python = types.DefaultPython
	}
	return &Converter{
		nidmDir:  nidmDir,
		inputDir: inputDir,
		python:   python,
		exec:     execr,
		log:      log,
	}
}

// FindExisting locates an existing NIDM file in the input directory:
// nidm.ttl when present, otherwise the first Turtle or JSON-LD file.
// It returns "" when there is nothing to augment.
func (c *Converter) FindExisting() string {
	if c.inputDir == "" {
		return ""
	}
	if _, err := os.Stat(c.inputDir); err != nil {
		return ""
	}

	primary := filepath.Join(c.inputDir, primaryInput)
	if _, err := os.Stat(primary); err == nil {
		return primary
	}

	for _, pattern := range inputPatterns {
		matches, err := filepath.Glob(filepath.Join(c.inputDir, pattern))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[0]
	}
	return ""
}

// stageExisting copies an existing NIDM file into the output directory
// so the converter augments the copy, never the input. A copy that
// cannot be made is fatal.
func (c *Converter) stageExisting(existing string) (string, error) {
	dest := filepath.Join(c.nidmDir, filepath.Base(existing))

	// The input directory may reach the output directory through a
	// symlink, so a lexical path comparison is not enough. Creating the
	// destination would truncate the file being read.
	if srcInfo, err := os.Stat(existing); err == nil {
		if destInfo, err := os.Stat(dest); err == nil && os.SameFile(srcInfo, destInfo) {
			c.log.Info("input and output NIDM paths are the same", zap.String("path", dest))
			return dest, nil
		}
	}

	in, err := os.Open(existing)
	if err != nil {
		return "", fmt.Errorf("cannot copy existing NIDM file %s: %w", existing, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("cannot copy existing NIDM file to %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("cannot copy existing NIDM file to %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("cannot copy existing NIDM file to %s: %w", dest, err)
	}

	c.log.Info("copied existing NIDM file to output directory", zap.String("path", dest))
	return dest, nil
}

// command builds the converter invocation. The converter rejects -n and
// -o together: augmenting an existing graph uses -n, a fresh conversion
// uses -o.
func (c *Converter) command(subjectDir, staged string) tool.Spec {
	args := []string{"-m", converterModule, "-s", subjectDir}
	if staged != "" {
		args = append(args, "-n", staged, "-j", "--forcenidm")
	} else {
		args = append(args, "-o", c.nidmDir, "-j")
	}
	return tool.Spec{Name: c.python, Args: args, Env: converterEnv}
}

// snapshot lists the entry names currently in the output directory.
func (c *Converter) snapshot() map[string]bool {
	names := make(map[string]bool)
	entries, err := os.ReadDir(c.nidmDir)
	if err != nil {
		return names
	}
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names
}

// Convert runs the converter for one FreeSurfer subject directory and
// writes the aggregated graph as <fsid>.ttl and <fsid>.jsonld.
func (c *Converter) Convert(subjectsDir, fsid string) error {
	if err := os.MkdirAll(c.nidmDir, 0o755); err != nil {
		return fmt.Errorf("creating NIDM output directory: %w", err)
	}

	existing := c.FindExisting()
	var staged string
	if existing != "" {
		var err error
		if staged, err = c.stageExisting(existing); err != nil {
			return err
		}
	} else if c.inputDir != "" {
		c.log.Info("no NIDM file found in input directory; creating new output",
			zap.String("input_dir", c.inputDir))
	}

	before := c.snapshot()

	spec := c.command(filepath.Join(subjectsDir, fsid), staged)
	c.log.Info("running NIDM converter",
		zap.String("python", spec.Name), zap.Strings("args", spec.Args))

	res, err := c.exec.RunCaptured(spec)
	if err != nil {
		return fmt.Errorf("NIDM conversion failed for %s: %w (stderr: %s)", fsid, err, res.Stderr)
	}

	var newOutputs []string
	for name := range c.snapshot() {
		if !before[name] {
			newOutputs = append(newOutputs, filepath.Join(c.nidmDir, name))
		}
	}
	sort.Strings(newOutputs)

	if len(newOutputs) == 0 && staged == "" {
		c.log.Warn("no new NIDM outputs were generated; skipping aggregation")
		return nil
	}

	var sources []string
	if staged != "" {
		sources = append(sources, staged)
	} else if existing != "" {
		sources = append(sources, existing)
	}
	for _, out := range newOutputs {
		if aggregateExts[strings.ToLower(filepath.Ext(out))] {
			sources = append(sources, out)
		}
	}
	if len(sources) == 0 {
		c.log.Warn("no NIDM sources found to aggregate after conversion")
		return nil
	}

	graph := NewGraph()
	for _, src := range sources {
		if err := graph.ParseFile(src); err != nil {
			c.log.Warn("skipping NIDM source", zap.String("source", src), zap.Error(err))
		}
	}
	if graph.Len() == 0 {
		c.log.Warn("aggregated NIDM graph is empty; skipping serialization")
		return nil
	}

	base := filepath.Join(c.nidmDir, fsid)
	if err := graph.WriteTurtle(base + ".ttl"); err != nil {
		return fmt.Errorf("writing aggregated turtle: %w", err)
	}
	if err := graph.WriteJSONLD(base + ".jsonld"); err != nil {
		return fmt.Errorf("writing aggregated JSON-LD: %w", err)
	}

	c.log.Info("NIDM conversion complete", zap.String("subject", fsid),
		zap.Int("triples", graph.Len()))
	return nil
}
