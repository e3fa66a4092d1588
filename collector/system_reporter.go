package collector

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"UnraidTools/unraid-mqtt-stats/dto"
)

// Reporters for the gopsutil-backed builtin sensors. Each call takes a
// fresh sample; nothing is cached between cycles.

func CPUUsageReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		percents, err := cpu.PercentWithContext(ctx, time.Second, false)
		if err != nil {
			return dto.Value{}, err
		}
		if len(percents) == 0 {
			return dto.Value{}, fmt.Errorf("no cpu usage sample")
		}
		return dto.FloatValue(round1(percents[0])), nil
	})
}

func MemoryUsageReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		stats, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.FloatValue(round1(stats.UsedPercent)), nil
	})
}

func MemoryUsedReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		stats, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(stats.Used)), nil
	})
}

func MemoryTotalReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		stats, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(stats.Total)), nil
	})
}

func UptimeReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		uptime, err := host.UptimeWithContext(ctx)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(uptime)), nil
	})
}

// parsedCommandReporter runs a host command through the shared executor and
// converts its output with a fixed parse function. Builtin sensors use it
// for df, sensors and mdcmd; user command sensors go through the
// post-process chain instead.
type parsedCommandReporter struct {
	executor Executor
	command  string
	args     []string
	parse    func(out string) (dto.Value, error)
}

func (r *parsedCommandReporter) Report(ctx context.Context) (dto.Value, error) {
	out, err := r.executor.Run(ctx, r.command, r.args)
	if err != nil {
		return dto.Value{}, err
	}
	return r.parse(out)
}

func DiskUsageReporter(executor Executor, mount string) dto.Reporter {
	return &parsedCommandReporter{
		executor: executor,
		command:  "df",
		args:     []string{"-BM", mount},
		parse: func(out string) (dto.Value, error) {
			line, ok := parseDFOutput(out)
			if !ok {
				return dto.Value{}, fmt.Errorf("unexpected df output")
			}
			return dto.FloatValue(line.usagePercent), nil
		},
	}
}

func DiskTotalReporter(executor Executor, mount string) dto.Reporter {
	return &parsedCommandReporter{
		executor: executor,
		command:  "df",
		args:     []string{"-k", mount},
		parse: func(out string) (dto.Value, error) {
			line, ok := parseDFOutput(out)
			if !ok {
				return dto.Value{}, fmt.Errorf("unexpected df output")
			}
			return kbValue(line.total)
		},
	}
}

func DiskAvailableReporter(executor Executor, mount string) dto.Reporter {
	return &parsedCommandReporter{
		executor: executor,
		command:  "df",
		args:     []string{"-k", mount},
		parse: func(out string) (dto.Value, error) {
			line, ok := parseDFOutput(out)
			if !ok {
				return dto.Value{}, fmt.Errorf("unexpected df output")
			}
			return kbValue(line.available)
		},
	}
}

func CPUTempReporter(executor Executor) dto.Reporter {
	return &parsedCommandReporter{
		executor: executor,
		command:  "sensors",
		parse: func(out string) (dto.Value, error) {
			temp, ok := parseCPUTemp(out)
			if !ok {
				return dto.Value{}, fmt.Errorf("no package temperature in sensors output")
			}
			return dto.FloatValue(round1(temp)), nil
		},
	}
}

func ArrayStatusReporter(executor Executor) dto.Reporter {
	return &parsedCommandReporter{
		executor: executor,
		command:  "mdcmd",
		args:     []string{"status"},
		parse: func(out string) (dto.Value, error) {
			status, ok := parseArrayStatus(out)
			if !ok {
				return dto.Value{}, fmt.Errorf("no mdState in mdcmd output")
			}
			return dto.TextValue(status), nil
		},
	}
}

// dfLine holds the fields of the first data line of df(1) output: total and
// available in whatever block unit df was invoked with, plus the use%.
type dfLine struct {
	total        string
	available    string
	usagePercent float64
}

func parseDFOutput(out string) (dfLine, bool) {
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return dfLine{}, false
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 5 {
		return dfLine{}, false
	}
	usage, err := strconv.ParseFloat(strings.TrimSuffix(fields[4], "%"), 64)
	if err != nil {
		return dfLine{}, false
	}
	return dfLine{total: fields[1], available: fields[3], usagePercent: usage}, true
}

// kbValue converts a df -k block count to bytes.
func kbValue(blocks string) (dto.Value, error) {
	kb, err := strconv.ParseInt(blocks, 10, 64)
	if err != nil {
		return dto.Value{}, fmt.Errorf("unexpected df block count %q", blocks)
	}
	return dto.IntValue(kb * 1024), nil
}

// parseCPUTemp picks the package temperature out of lm-sensors output, e.g.
// "Package id 0:  +42.0°C  (high = +80.0°C, ...)".
func parseCPUTemp(out string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "Package id 0") {
			continue
		}
		for _, word := range strings.Fields(line) {
			if !strings.Contains(word, "°C") {
				continue
			}
			raw := strings.TrimSuffix(strings.TrimPrefix(word, "+"), "°C")
			temp, err := strconv.ParseFloat(raw, 64)
			if err == nil {
				return temp, true
			}
		}
	}
	return 0, false
}

// parseArrayStatus extracts the mdState value from mdcmd status output.
func parseArrayStatus(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "mdState=") {
			return strings.TrimPrefix(line, "mdState="), true
		}
	}
	return "", false
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
