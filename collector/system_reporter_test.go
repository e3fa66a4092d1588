package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"UnraidTools/unraid-mqtt-stats/dto"
)

// fakeExecutor returns canned output and records what was asked of it.
type fakeExecutor struct {
	out        string
	err        error
	gotCommand string
	gotArgs    []string
}

func (f *fakeExecutor) Run(ctx context.Context, command string, args []string) (string, error) {
	f.gotCommand = command
	f.gotArgs = args
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

const dfMegabytes = `Filesystem     1M-blocks    Used Available Use% Mounted on
shfs             7630885 5012345   2618540  66% /mnt/user
`

const dfKilobytes = `Filesystem      1K-blocks       Used  Available Use% Mounted on
shfs           7813826560 5132641280 2681185280  66% /mnt/user
`

const sensorsOutput = `coretemp-isa-0000
Adapter: ISA adapter
Package id 0:  +42.5°C  (high = +80.0°C, crit = +100.0°C)
Core 0:        +40.0°C  (high = +80.0°C, crit = +100.0°C)
`

const mdcmdOutput = `sbName=/boot/config/super.dat
sbSynced=0
mdState=STARTED
mdNumDisks=5
`

func TestDiskUsageReporter(t *testing.T) {
	executor := &fakeExecutor{out: dfMegabytes}

	value, err := DiskUsageReporter(executor, "/mnt/user").Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.FloatValue(66), value)
	assert.Equal(t, "df", executor.gotCommand)
	assert.Equal(t, []string{"-BM", "/mnt/user"}, executor.gotArgs)
}

func TestDiskTotalAndAvailableReportBytes(t *testing.T) {
	executor := &fakeExecutor{out: dfKilobytes}

	total, err := DiskTotalReporter(executor, "/mnt/user").Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.IntValue(7813826560*1024), total)
	assert.Equal(t, []string{"-k", "/mnt/user"}, executor.gotArgs)

	available, err := DiskAvailableReporter(executor, "/mnt/user").Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.IntValue(2681185280*1024), available)
}

func TestCPUTempReporter(t *testing.T) {
	executor := &fakeExecutor{out: sensorsOutput}

	value, err := CPUTempReporter(executor).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.FloatValue(42.5), value)
	assert.Equal(t, "sensors", executor.gotCommand)
}

func TestArrayStatusReporter(t *testing.T) {
	executor := &fakeExecutor{out: mdcmdOutput}

	value, err := ArrayStatusReporter(executor).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.TextValue("STARTED"), value)
	assert.Equal(t, "mdcmd", executor.gotCommand)
	assert.Equal(t, []string{"status"}, executor.gotArgs)
}

func TestParsedReporterPropagatesExecutorError(t *testing.T) {
	execErr := errors.New("df blew up")
	executor := &fakeExecutor{err: execErr}

	_, err := DiskUsageReporter(executor, "/mnt/user").Report(context.Background())
	assert.ErrorIs(t, err, execErr)
}

func TestParseDFOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
		ok   bool
	}{
		{"valid", dfMegabytes, true},
		{"header only", "Filesystem 1M-blocks Used Available Use% Mounted on\n", false},
		{"short data line", "header\nshfs 100\n", false},
		{"garbage use column", "header\nshfs 100 50 50 lots /mnt/user\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := parseDFOutput(tt.out)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "7630885", line.total)
				assert.Equal(t, "2618540", line.available)
				assert.Equal(t, 66.0, line.usagePercent)
			}
		})
	}
}

func TestParseCPUTemp(t *testing.T) {
	temp, ok := parseCPUTemp(sensorsOutput)
	require.True(t, ok)
	assert.Equal(t, 42.5, temp)

	_, ok = parseCPUTemp("Core 0: +40.0°C\n")
	assert.False(t, ok, "only the package line counts")

	_, ok = parseCPUTemp("")
	assert.False(t, ok)
}

func TestParseArrayStatus(t *testing.T) {
	status, ok := parseArrayStatus(mdcmdOutput)
	require.True(t, ok)
	assert.Equal(t, "STARTED", status)

	_, ok = parseArrayStatus("sbName=/boot/config/super.dat\n")
	assert.False(t, ok)
}

func TestKBValue(t *testing.T) {
	value, err := kbValue("2048")
	require.NoError(t, err)
	assert.Equal(t, dto.IntValue(2048*1024), value)

	_, err = kbValue("2.5G")
	assert.Error(t, err)
}
