package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"UnraidTools/unraid-mqtt-stats/dto"
)

// DockerReporters wraps the engine API client behind the builtin docker
// sensors. Constructing it does not dial the daemon; an unreachable socket
// shows up as unavailable readings, not a startup failure.
type DockerReporters struct {
	cli *client.Client
}

func NewDockerReporters() (*DockerReporters, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerReporters{cli: cli}, nil
}

func (d *DockerReporters) listContainers(ctx context.Context, args filters.Args) ([]types.Container, error) {
	return d.cli.ContainerList(ctx, types.ContainerListOptions{All: true, Filters: args})
}

// RunningContainers lists the containers that get per-container sensors.
func (d *DockerReporters) RunningContainers(ctx context.Context) ([]types.Container, error) {
	return d.listContainers(ctx, filters.NewArgs(filters.Arg("status", "running")))
}

func (d *DockerReporters) RunningCountReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		containers, err := d.listContainers(ctx, filters.NewArgs(filters.Arg("status", "running")))
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(len(containers))), nil
	})
}

func (d *DockerReporters) UnhealthyCountReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		containers, err := d.listContainers(ctx, filters.NewArgs(filters.Arg("health", "unhealthy")))
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(len(containers))), nil
	})
}

func (d *DockerReporters) ImagesCountReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		images, err := d.cli.ImageList(ctx, types.ImageListOptions{})
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(len(images))), nil
	})
}

func (d *DockerReporters) ImagesSizeReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		images, err := d.cli.ImageList(ctx, types.ImageListOptions{})
		if err != nil {
			return dto.Value{}, err
		}
		var total int64
		for _, image := range images {
			total += image.Size
		}
		return dto.IntValue(total), nil
	})
}

func (d *DockerReporters) VolumesCountReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		volumes, err := d.cli.VolumeList(ctx, volume.ListOptions{})
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(len(volumes.Volumes))), nil
	})
}

// ContainerSensors builds the per-container sensor triple (cpu, memory,
// uptime) for every container running right now. Reporters re-resolve the
// container by name each cycle, so a restarted container keeps reporting
// and a removed one reads unavailable. Names carry no device prefix;
// discovery adds it once.
func (d *DockerReporters) ContainerSensors(ctx context.Context) ([]*dto.Sensor, error) {
	containers, err := d.RunningContainers(ctx)
	if err != nil {
		return nil, err
	}
	var sensors []*dto.Sensor
	for _, c := range containers {
		name := containerName(c)
		if name == "" {
			continue
		}
		sensors = append(sensors,
			&dto.Sensor{
				ID:       fmt.Sprintf("dockercontainer_%s_cpu", name),
				Name:     fmt.Sprintf("Docker %s CPU", name),
				Unit:     "%",
				Icon:     "cpu-64-bit",
				Kind:     dto.KindBuiltin,
				Reporter: d.ContainerCPUReporter(name),
			},
			&dto.Sensor{
				ID:          fmt.Sprintf("dockercontainer_%s_memory", name),
				Name:        fmt.Sprintf("Docker %s Memory", name),
				Unit:        "B",
				DeviceClass: dto.DeviceClassDataSize,
				Icon:        "memory",
				Kind:        dto.KindBuiltin,
				Reporter:    d.ContainerMemoryReporter(name),
			},
			&dto.Sensor{
				ID:       fmt.Sprintf("dockercontainer_%s_uptime", name),
				Name:     fmt.Sprintf("Docker %s Uptime", name),
				Icon:     "docker",
				Kind:     dto.KindBuiltin,
				Reporter: d.ContainerUptimeReporter(name),
			},
		)
	}
	return sensors, nil
}

func (d *DockerReporters) ContainerCPUReporter(name string) dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		c, err := d.findContainer(ctx, name)
		if err != nil {
			return dto.Value{}, err
		}
		stats, err := d.containerStats(ctx, c.ID)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.FloatValue(round1(calculateCPUPercent(&stats))), nil
	})
}

func (d *DockerReporters) ContainerMemoryReporter(name string) dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		c, err := d.findContainer(ctx, name)
		if err != nil {
			return dto.Value{}, err
		}
		stats, err := d.containerStats(ctx, c.ID)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(stats.MemoryStats.Usage)), nil
	})
}

func (d *DockerReporters) ContainerUptimeReporter(name string) dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		c, err := d.findContainer(ctx, name)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.TextValue(c.Status), nil
	})
}

// findContainer resolves a container by exact name. The daemon's name
// filter matches substrings, so the result still needs checking.
func (d *DockerReporters) findContainer(ctx context.Context, name string) (types.Container, error) {
	containers, err := d.listContainers(ctx, filters.NewArgs(filters.Arg("name", name)))
	if err != nil {
		return types.Container{}, err
	}
	for _, c := range containers {
		if containerName(c) == name {
			return c, nil
		}
	}
	return types.Container{}, fmt.Errorf("container %s not found", name)
}

// containerStats takes one non-streaming sample; the daemon fills the
// precpu fields from its own previous sample, which the CPU delta needs.
func (d *DockerReporters) containerStats(ctx context.Context, id string) (types.StatsJSON, error) {
	resp, err := d.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return types.StatsJSON{}, err
	}
	defer resp.Body.Close()

	var stats types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return types.StatsJSON{}, fmt.Errorf("decoding container stats: %w", err)
	}
	return stats, nil
}

func containerName(c types.Container) string {
	if len(c.Names) == 0 {
		return ""
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

func calculateCPUPercent(stats *types.StatsJSON) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta > 0 && cpuDelta > 0 {
		return cpuDelta / systemDelta * float64(stats.CPUStats.OnlineCPUs) * 100.0
	}
	return 0
}
