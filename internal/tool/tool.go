// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tool abstracts execution of the external binaries the app
// depends on (recon-all and the NIDM converter module).
package tool

import (
	"bytes"
	"os"
	"os/exec"
)

// Spec describes one external command invocation.
type Spec struct {
	// Name is the binary to run, resolved against PATH.
	Name string

	// Args are the command arguments, excluding the binary name.
	Args []string

	// Env lists extra environment entries ("KEY=value") appended to the
	// current process environment.
	Env []string

	// Dir is the working directory; empty means inherit.
	Dir string
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout string
	Stderr string
}

// Executor abstracts command execution for testing.
type Executor interface {
	// LookPath reports whether the binary exists on PATH.
	LookPath(file string) (string, error)

	// RunSilent executes a command discarding its output.
	RunSilent(name string, args ...string) error

	// RunCaptured executes a command and returns stdout and stderr
	// separately. A non-zero exit is returned as an error alongside
	// whatever output was produced.
	RunCaptured(spec Spec) (Result, error)
}

// OSExecutor is the production Executor backed by os/exec.
type OSExecutor struct{}

func (o *OSExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *OSExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *OSExecutor) RunCaptured(spec Spec) (Result, error) {
	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// Default is the Executor used outside of tests.
var Default Executor = &OSExecutor{}
