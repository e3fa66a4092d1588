package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"UnraidTools/unraid-mqtt-stats/clients"
	"UnraidTools/unraid-mqtt-stats/dto"
	"UnraidTools/unraid-mqtt-stats/registry"
)

// reloadDebounce collapses the bursts of write events editors produce when
// saving the config file.
const reloadDebounce = 500 * time.Millisecond

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mqtt_stats",
		Name:      "cycles_total",
		Help:      "Completed collection cycles.",
	})
	sensorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mqtt_stats",
		Name:      "sensor_failures_total",
		Help:      "Sensor reads that ended unavailable.",
	}, []string{"sensor"})
	publishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mqtt_stats",
		Name:      "publish_failures_total",
		Help:      "Snapshots or discovery sets that failed to publish.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mqtt_stats",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one collection cycle.",
		Buckets:   prometheus.DefBuckets,
	})
)

// RegistryBuilder rebuilds the sensor registry from the config file on disk.
// Used at reload; the caller builds the initial registry itself so startup
// errors stay fatal.
type RegistryBuilder func(ctx context.Context) (*registry.Registry, error)

// StatsMonitor drives the collection cycles: every interval it runs all
// enabled sensors through a bounded worker pool, assembles the snapshot and
// hands it to the publisher. Config reloads are consumed between cycles, so
// a snapshot never mixes two sensor sets.
type StatsMonitor struct {
	publisher clients.Publisher
	build     RegistryBuilder

	interval      time.Duration
	workers       int
	skipDiscovery bool
	debug         bool

	mu       sync.RWMutex
	registry *registry.Registry
	latest   *dto.Snapshot

	reload chan struct{}
}

func NewStatsMonitor(reg *registry.Registry, publisher clients.Publisher, build RegistryBuilder,
	interval time.Duration, workers int, skipDiscovery bool) *StatsMonitor {
	if workers < 1 {
		// zero or negative would lift the pool limit entirely
		workers = 1
	}
	return &StatsMonitor{
		publisher:     publisher,
		build:         build,
		interval:      interval,
		workers:       workers,
		skipDiscovery: skipDiscovery,
		debug:         os.Getenv("MQTT_STATS_DEBUG") != "",
		registry:      reg,
		reload:        make(chan struct{}, 1),
	}
}

// Run publishes discovery, then cycles until ctx is cancelled. A cancelled
// cycle's partial snapshot is discarded, never published.
func (sm *StatsMonitor) Run(ctx context.Context) error {
	if err := sm.publishDiscovery(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	sm.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sm.reload:
			sm.reloadRegistry(ctx)
		case <-ticker.C:
			sm.runCycle(ctx)
		}
	}
}

// RunOnce performs discovery plus a single collection cycle. This is the
// --json-output path.
func (sm *StatsMonitor) RunOnce(ctx context.Context) error {
	if err := sm.publishDiscovery(ctx); err != nil {
		return err
	}
	snapshot, err := sm.collectCycle(ctx)
	if err != nil {
		return err
	}
	sm.setLatest(snapshot)
	return sm.publisher.PublishSnapshot(ctx, snapshot)
}

func (sm *StatsMonitor) publishDiscovery(ctx context.Context) error {
	if sm.skipDiscovery {
		return nil
	}
	if err := sm.publisher.PublishDiscovery(ctx, sm.currentRegistry().Enabled()); err != nil {
		return fmt.Errorf("publishing discovery: %w", err)
	}
	return nil
}

func (sm *StatsMonitor) runCycle(ctx context.Context) {
	started := time.Now()
	snapshot, err := sm.collectCycle(ctx)
	if err != nil {
		log.Printf("collection cycle abandoned: %v", err)
		return
	}
	cycleDuration.Observe(time.Since(started).Seconds())
	cyclesTotal.Inc()
	sm.setLatest(snapshot)

	if err := sm.publisher.PublishSnapshot(ctx, snapshot); err != nil {
		publishFailuresTotal.Inc()
		log.Printf("publishing snapshot: %v", err)
	}
}

// collectCycle runs every enabled sensor under the worker limit and returns
// the complete snapshot. Each reading lands at its sensor's index, so the
// workers share nothing.
func (sm *StatsMonitor) collectCycle(ctx context.Context) (*dto.Snapshot, error) {
	sensors := sm.currentRegistry().Enabled()
	readings := make([]dto.Reading, len(sensors))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(sm.workers)
	for i, sensor := range sensors {
		group.Go(func() error {
			readings[i] = sm.collectOne(groupCtx, sensor)
			return nil
		})
	}
	group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &dto.Snapshot{TakenAt: time.Now(), Readings: readings}, nil
}

// collectOne never fails a cycle: a sensor error is logged, counted and
// downgraded to an unavailable reading.
func (sm *StatsMonitor) collectOne(ctx context.Context, sensor *dto.Sensor) dto.Reading {
	value, err := sensor.Reporter.Report(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("sensor %s: %v", sensor.ID, err)
			sensorFailuresTotal.WithLabelValues(sensor.ID).Inc()
		}
		return dto.Reading{Sensor: sensor, Unavailable: true, Failure: err.Error()}
	}
	if sm.debug {
		log.Printf("sensor %s = %s", sensor.ID, value.String())
	}
	return dto.Reading{Sensor: sensor, Value: value}
}

// reloadRegistry swaps in a freshly built registry. A failed rebuild keeps
// the previous sensors running.
func (sm *StatsMonitor) reloadRegistry(ctx context.Context) {
	reg, err := sm.build(ctx)
	if err != nil {
		log.Printf("config reload failed, keeping previous sensors: %v", err)
		return
	}

	sm.mu.Lock()
	sm.registry = reg
	sm.mu.Unlock()
	log.Printf("config reloaded: %d sensors, %d enabled", len(reg.All()), len(reg.Enabled()))

	if err := sm.publishDiscovery(ctx); err != nil {
		publishFailuresTotal.Inc()
		log.Printf("%v", err)
	}
}

// WatchConfig watches the config file and requests a reload after writes
// settle. The containing directory is watched because editors typically
// replace the file, which drops a watch on the file itself.
func (sm *StatsMonitor) WatchConfig(ctx context.Context, filePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	filePath = filepath.Clean(filePath)
	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(filePath), err)
	}
	log.Printf("watching %s for changes", filePath)

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filePath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(reloadDebounce)
		case <-debounce.C:
			sm.RequestReload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher: %v", err)
		}
	}
}

// RequestReload schedules a registry rebuild before the next cycle. Extra
// requests while one is pending coalesce.
func (sm *StatsMonitor) RequestReload() {
	select {
	case sm.reload <- struct{}{}:
	default:
	}
}

// Sensors exposes the resolved registry for the status API, disabled
// sensors included.
func (sm *StatsMonitor) Sensors() []*dto.Sensor {
	return sm.currentRegistry().All()
}

// LatestSnapshot returns the most recent complete snapshot, nil before the
// first cycle finishes.
func (sm *StatsMonitor) LatestSnapshot() *dto.Snapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.latest
}

func (sm *StatsMonitor) currentRegistry() *registry.Registry {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.registry
}

func (sm *StatsMonitor) setLatest(snapshot *dto.Snapshot) {
	sm.mu.Lock()
	sm.latest = snapshot
	sm.mu.Unlock()
}
