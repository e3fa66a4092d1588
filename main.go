package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"UnraidTools/unraid-mqtt-stats/api"
	"UnraidTools/unraid-mqtt-stats/clients"
	"UnraidTools/unraid-mqtt-stats/collector"
	"UnraidTools/unraid-mqtt-stats/conf"
	"UnraidTools/unraid-mqtt-stats/monitor"
	"UnraidTools/unraid-mqtt-stats/registry"
)

type options struct {
	host            string
	port            int
	clientID        string
	username        string
	password        string
	configFile      string
	sensorDump      string
	jsonOutput      bool
	discoveryPrefix string
	deviceName      string
	skipDiscovery   bool
	interval        time.Duration
	workers         int
	commandTimeout  time.Duration
	apiAddr         string
	logFile         string
}

var opts options

var rootCmd = &cobra.Command{
	Use:           "unraid-mqtt-stats",
	Short:         "Publish Unraid host stats to MQTT with Home Assistant discovery",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&opts.host, "host", "H", os.Getenv("MQTT_HOST"), "MQTT broker host (MQTT_HOST)")
	flags.IntVarP(&opts.port, "port", "p", envInt("MQTT_PORT", 1883), "MQTT broker port (MQTT_PORT)")
	flags.StringVarP(&opts.clientID, "client-id", "i", os.Getenv("MQTT_CLIENT_ID"), "MQTT client id (MQTT_CLIENT_ID)")
	flags.StringVarP(&opts.username, "username", "u", os.Getenv("MQTT_USER"), "MQTT username (MQTT_USER)")
	flags.StringVarP(&opts.password, "password", "P", os.Getenv("MQTT_PASSWORD"), "MQTT password (MQTT_PASSWORD)")
	flags.StringVarP(&opts.configFile, "config-file", "c", "", "TOML sensor config file")
	flags.StringVar(&opts.sensorDump, "sensor-dump", "", "write the resolved sensors as TOML to this file and exit")
	flags.BoolVar(&opts.jsonOutput, "json-output", false, "print one cycle as JSON lines instead of publishing")
	flags.StringVar(&opts.discoveryPrefix, "discovery-prefix", "homeassistant", "Home Assistant discovery topic prefix")
	flags.StringVar(&opts.deviceName, "device-name", "unraid", "device name used in topics and discovery")
	flags.BoolVar(&opts.skipDiscovery, "skip-discovery", false, "do not publish discovery configs")
	flags.DurationVar(&opts.interval, "interval", 30*time.Second, "collection cycle interval")
	flags.IntVar(&opts.workers, "workers", 4, "maximum sensors collected concurrently")
	flags.DurationVar(&opts.commandTimeout, "command-timeout", 10*time.Second, "timeout for each sensor command")
	flags.StringVar(&opts.apiAddr, "api-addr", ":8080", "status API listen address, empty disables")
	flags.StringVar(&opts.logFile, "log-file", "", "append logs to this file instead of stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := setupLogging(opts.logFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := collector.NewExecRunner(opts.commandTimeout)
	docker, err := collector.NewDockerReporters()
	if err != nil {
		log.Printf("docker unavailable, docker sensors skipped: %v", err)
		docker = nil
	}

	build := newRegistryBuilder(executor, docker, opts.configFile)
	reg, err := build(ctx)
	if err != nil {
		return err
	}
	log.Printf("resolved %d sensors, %d enabled", len(reg.All()), len(reg.Enabled()))

	if opts.sensorDump != "" {
		log.Printf("writing sensor dump to %s", opts.sensorDump)
		return conf.WriteSensorDump(opts.sensorDump, reg.All())
	}

	if opts.jsonOutput {
		publisher := clients.NewJSONPublisher(os.Stdout, opts.deviceName, opts.discoveryPrefix)
		statsMonitor := monitor.NewStatsMonitor(reg, publisher, build, opts.interval, opts.workers, opts.skipDiscovery)
		return statsMonitor.RunOnce(ctx)
	}

	if opts.host == "" {
		return fmt.Errorf("an MQTT host is required: set --host or MQTT_HOST")
	}

	publisher, err := clients.NewMQTTPublisher(clients.MQTTOptions{
		Host:     opts.host,
		Port:     opts.port,
		ClientID: opts.clientID,
		Username: opts.username,
		Password: opts.password,
	}, opts.deviceName, opts.discoveryPrefix)
	if err != nil {
		return err
	}
	defer publisher.Close()

	statsMonitor := monitor.NewStatsMonitor(reg, publisher, build, opts.interval, opts.workers, opts.skipDiscovery)

	if opts.configFile != "" {
		go func() {
			if err := statsMonitor.WatchConfig(ctx, opts.configFile); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("config watcher stopped: %v", err)
			}
		}()
	}

	if opts.apiAddr != "" {
		go func() {
			log.Printf("status API listening on %s", opts.apiAddr)
			if err := api.RegisterHandlers(statsMonitor, opts.apiAddr); err != nil {
				log.Printf("status API stopped: %v", err)
			}
		}()
	}

	log.Printf("publishing stats for %s every %s", opts.deviceName, opts.interval)
	err = statsMonitor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Print("shutting down")
		return nil
	}
	return err
}

// newRegistryBuilder closes over everything a registry rebuild needs. The
// docker client is shared across rebuilds; the S3 prober follows the [s3]
// config section, so it is rebuilt with the registry.
func newRegistryBuilder(executor collector.Executor, docker *collector.DockerReporters, configFile string) monitor.RegistryBuilder {
	factory := collector.NewFactory(executor)
	return func(ctx context.Context) (*registry.Registry, error) {
		config, err := loadConfig(configFile)
		if err != nil {
			return nil, err
		}
		var s3 *collector.S3Prober
		if config != nil && config.S3 != nil {
			s3, err = collector.NewS3Prober(config.S3)
			if err != nil {
				return nil, fmt.Errorf("building s3 probe: %w", err)
			}
		}
		builtins := collector.BuiltinSensors(ctx, executor, docker, s3)
		return registry.Build(builtins, config, factory)
	}
}

func loadConfig(filePath string) (*conf.Config, error) {
	if filePath == "" {
		return nil, nil
	}
	return conf.LoadConfig(filePath)
}

// Log file setup, stderr unless --log-file is given so the JSON dry-run
// stream on stdout stays clean.
func setupLogging(filePath string) error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if filePath == "" {
		return nil
	}
	logFile, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(logFile)
	return nil
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("ignoring %s=%q: not a number", key, value)
		return fallback
	}
	return parsed
}
