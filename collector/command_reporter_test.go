package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"UnraidTools/unraid-mqtt-stats/dto"
)

func TestExecRunnerCapturesStdout(t *testing.T) {
	runner := NewExecRunner(5 * time.Second)

	out, err := runner.Run(context.Background(), "echo", []string{"hello", "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	runner := NewExecRunner(5 * time.Second)

	_, err := runner.Run(context.Background(), "sh", []string{"-c", "exit 3"})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, FailExit, cmdErr.Reason)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Error(), "exited with code 3")
}

func TestExecRunnerTimeout(t *testing.T) {
	runner := NewExecRunner(100 * time.Millisecond)

	_, err := runner.Run(context.Background(), "sleep", []string{"5"})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, FailTimeout, cmdErr.Reason)
	assert.Contains(t, cmdErr.Error(), "timed out")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	runner := NewExecRunner(5 * time.Second)

	_, err := runner.Run(context.Background(), "/no/such/binary", nil)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, FailStart, cmdErr.Reason)
}

func TestExecRunnerEmptyOutput(t *testing.T) {
	runner := NewExecRunner(5 * time.Second)

	_, err := runner.Run(context.Background(), "true", nil)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, FailNoOutput, cmdErr.Reason)
}

func TestExecRunnerWhitespaceOnlyOutputIsEmpty(t *testing.T) {
	runner := NewExecRunner(5 * time.Second)

	_, err := runner.Run(context.Background(), "echo", []string{"  "})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, FailNoOutput, cmdErr.Reason)
}

func TestExecRunnerBackgroundChildDoesNotHoldTheRead(t *testing.T) {
	runner := NewExecRunner(100 * time.Millisecond)

	// the shell exits immediately but the backgrounded sleep inherits
	// stdout and keeps the pipe open for its own lifetime
	started := time.Now()
	out, err := runner.Run(context.Background(), "sh", []string{"-c", "echo hi; sleep 2 &"})
	elapsed := time.Since(started)

	require.NoError(t, err, "an exit-zero command with a lingering child is not a failure")
	assert.Equal(t, "hi\n", out)
	assert.Less(t, elapsed, time.Second, "the read must not wait out the child")
}

func TestExecRunnerCancellationIsNotACommandError(t *testing.T) {
	runner := NewExecRunner(10 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := runner.Run(ctx, "sleep", []string{"5"})
	require.ErrorIs(t, err, context.Canceled)
	var cmdErr *CommandError
	assert.False(t, errors.As(err, &cmdErr), "cancellation must propagate raw, not as a command failure")
}

func TestCommandReporterAppliesChain(t *testing.T) {
	factory := NewFactory(NewExecRunner(5 * time.Second))

	reporter, err := factory.CommandReporter("echo", []string{"  42.5  "}, []string{"TrimWhitespace", "ParseFloat"})
	require.NoError(t, err)

	value, err := reporter.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.FloatValue(42.5), value)
}

func TestCommandReporterChainFailureFailsReading(t *testing.T) {
	factory := NewFactory(NewExecRunner(5 * time.Second))

	reporter, err := factory.CommandReporter("echo", []string{"ONLINE"}, []string{"ParseFloat"})
	require.NoError(t, err)

	_, err = reporter.Report(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ParseFloat")
}

func TestFactoryRejectsUnknownTransform(t *testing.T) {
	factory := NewFactory(NewExecRunner(5 * time.Second))

	_, err := factory.CommandReporter("echo", nil, []string{"Reverse"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transform "Reverse"`)
}
