package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"UnraidTools/unraid-mqtt-stats/analyzer"
	"UnraidTools/unraid-mqtt-stats/dto"
)

// Executor runs one external program and returns its raw standard output.
// Tests substitute a deterministic fake.
type Executor interface {
	Run(ctx context.Context, command string, args []string) (string, error)
}

type FailReason string

const (
	FailStart    FailReason = "start"
	FailExit     FailReason = "exit"
	FailTimeout  FailReason = "timeout"
	FailNoOutput FailReason = "no-output"
)

// CommandError classifies a single command invocation failure. It is scoped
// to the sensor that ran the command and never escalates past it.
type CommandError struct {
	Reason   FailReason
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	switch e.Reason {
	case FailExit:
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	case FailTimeout:
		return fmt.Sprintf("%s timed out", e.Command)
	case FailNoOutput:
		return fmt.Sprintf("%s produced no output", e.Command)
	default:
		return fmt.Sprintf("%s could not start: %v", e.Command, e.Err)
	}
}

func (e *CommandError) Unwrap() error { return e.Err }

// stdoutWait bounds how long a command's stdout pipe may stay open after
// the command exits or is killed. Without it Wait blocks until pipe EOF,
// and a forked child that inherited stdout holds the read open for its
// own lifetime.
const stdoutWait = 200 * time.Millisecond

// ExecRunner is the real Executor: one subprocess per invocation, stdout
// captured, wall clock bounded by Timeout plus the stdout grace window.
// Arguments are passed verbatim, no shell in between.
type ExecRunner struct {
	Timeout time.Duration
}

func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, command string, args []string) (string, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.WaitDelay = stdoutWait
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()

	// ErrWaitDelay means the command itself exited zero and only the forced
	// pipe close ended the wait; what it wrote before exiting is the reading.
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", &CommandError{Reason: FailTimeout, Command: command, Err: runCtx.Err()}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CommandError{Reason: FailExit, Command: command, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return "", &CommandError{Reason: FailStart, Command: command, Err: err}
	}
	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		return "", &CommandError{Reason: FailNoOutput, Command: command}
	}
	return stdout.String(), nil
}

// CommandReporter runs a configured command sensor and feeds its raw output
// through the post-process chain.
type CommandReporter struct {
	executor Executor
	command  string
	args     []string
	chain    *analyzer.PostProcessor
}

func (cr *CommandReporter) Report(ctx context.Context) (dto.Value, error) {
	out, err := cr.executor.Run(ctx, cr.command, cr.args)
	if err != nil {
		return dto.Value{}, err
	}
	return cr.chain.Apply(out)
}
