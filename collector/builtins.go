package collector

import (
	"context"
	"log"

	"UnraidTools/unraid-mqtt-stats/dto"
)

// UserShareMount is the Unraid user share the disk sensors report on.
const UserShareMount = "/mnt/user"

// BuiltinSensors assembles the compiled-in sensor table: system metrics,
// user-share disk, array status, docker daemon and per-container sensors,
// plus the S3 probe when configured. The table is rebuilt together with
// the registry, so container sensors reflect the containers running at
// build time. Nil docker/s3 handles just leave their groups out.
func BuiltinSensors(ctx context.Context, executor Executor, docker *DockerReporters, s3 *S3Prober) []*dto.Sensor {
	sensors := []*dto.Sensor{
		{
			ID:       "cpu_usage",
			Name:     "CPU Usage",
			Unit:     "%",
			Kind:     dto.KindBuiltin,
			Reporter: CPUUsageReporter(),
		},
		{
			ID:       "memory_usage",
			Name:     "Memory Usage",
			Unit:     "%",
			Kind:     dto.KindBuiltin,
			Reporter: MemoryUsageReporter(),
		},
		{
			ID:          "memory_total",
			Name:        "Memory Total",
			Unit:        "B",
			DeviceClass: dto.DeviceClassDataSize,
			Icon:        "memory",
			Kind:        dto.KindBuiltin,
			Reporter:    MemoryTotalReporter(),
		},
		{
			ID:          "memory_used",
			Name:        "Memory Used",
			Unit:        "B",
			DeviceClass: dto.DeviceClassDataSize,
			Icon:        "memory",
			Kind:        dto.KindBuiltin,
			Reporter:    MemoryUsedReporter(),
		},
		{
			ID:       "disk_usage",
			Name:     "Disk Usage",
			Unit:     "%",
			Kind:     dto.KindBuiltin,
			Reporter: DiskUsageReporter(executor, UserShareMount),
		},
		{
			ID:          "disk_total",
			Name:        "Disk Total",
			Unit:        "B",
			DeviceClass: dto.DeviceClassDataSize,
			Icon:        "harddisk",
			Kind:        dto.KindBuiltin,
			Reporter:    DiskTotalReporter(executor, UserShareMount),
		},
		{
			ID:          "disk_available",
			Name:        "Disk Available",
			Unit:        "B",
			DeviceClass: dto.DeviceClassDataSize,
			Icon:        "harddisk",
			Kind:        dto.KindBuiltin,
			Reporter:    DiskAvailableReporter(executor, UserShareMount),
		},
		{
			ID:          "cpu_temp",
			Name:        "CPU Temperature",
			Unit:        "°C",
			DeviceClass: dto.DeviceClassTemperature,
			Kind:        dto.KindBuiltin,
			Reporter:    CPUTempReporter(executor),
		},
		{
			ID:       "uptime",
			Name:     "Uptime",
			Icon:     "clock-outline",
			Kind:     dto.KindBuiltin,
			Reporter: UptimeReporter(),
		},
		{
			ID:       "array_status",
			Name:     "Array Status",
			Kind:     dto.KindBuiltin,
			Reporter: ArrayStatusReporter(executor),
		},
	}

	if docker != nil {
		sensors = append(sensors,
			&dto.Sensor{
				ID:       "docker_containers_running",
				Name:     "Docker Containers Running",
				Icon:     "docker",
				Kind:     dto.KindBuiltin,
				Reporter: docker.RunningCountReporter(),
			},
			&dto.Sensor{
				ID:       "docker_containers_unhealthy",
				Name:     "Docker Containers Unhealthy",
				Icon:     "docker",
				Kind:     dto.KindBuiltin,
				Reporter: docker.UnhealthyCountReporter(),
			},
			&dto.Sensor{
				ID:       "docker_images_count",
				Name:     "Docker Images",
				Icon:     "docker",
				Kind:     dto.KindBuiltin,
				Reporter: docker.ImagesCountReporter(),
			},
			&dto.Sensor{
				ID:          "docker_images_size",
				Name:        "Docker Images Size",
				Unit:        "B",
				DeviceClass: dto.DeviceClassDataSize,
				Icon:        "database",
				Kind:        dto.KindBuiltin,
				Reporter:    docker.ImagesSizeReporter(),
			},
			&dto.Sensor{
				ID:       "docker_volumes_count",
				Name:     "Docker Volumes",
				Icon:     "docker",
				Kind:     dto.KindBuiltin,
				Reporter: docker.VolumesCountReporter(),
			},
		)

		containerSensors, err := docker.ContainerSensors(ctx)
		if err != nil {
			log.Printf("listing docker containers: %v (container sensors skipped)", err)
		}
		sensors = append(sensors, containerSensors...)
	}

	if s3 != nil {
		sensors = append(sensors,
			&dto.Sensor{
				ID:       "s3_latency",
				Name:     "S3 Latency",
				Unit:     "ms",
				Icon:     "cloud-outline",
				Kind:     dto.KindBuiltin,
				Reporter: s3.LatencyReporter(),
			},
			&dto.Sensor{
				ID:       "s3_buckets",
				Name:     "S3 Buckets",
				Icon:     "cloud-outline",
				Kind:     dto.KindBuiltin,
				Reporter: s3.BucketCountReporter(),
			},
		)
	}

	return sensors
}
