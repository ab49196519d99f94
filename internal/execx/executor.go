// Package execx runs model runner binaries with bounded execution time.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// CommandRunner is the interface for running commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
}

// ExecCommandRunner uses os/exec.
type ExecCommandRunner struct{}

// Run runs a command.
func (ExecCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Executor runs a fixed binary with per-call timeouts.
type Executor struct {
	runner     CommandRunner
	binaryPath string
	timeout    time.Duration
}

// NewExecutor creates an executor after checking the binary exists.
func NewExecutor(binaryPath string, timeout time.Duration) (*Executor, error) {
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("execx: binary not found: %w", err)
	}

	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     ExecCommandRunner{},
	}, nil
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binaryPath string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     runner,
	}
}

// Execute runs the command and returns output.
func (e *Executor) Execute(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.runner.Run(ctx, e.binaryPath, args, stdin)
}
