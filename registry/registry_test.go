package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"UnraidTools/unraid-mqtt-stats/conf"
	"UnraidTools/unraid-mqtt-stats/dto"
)

type fakeFactory struct {
	err error
}

func (f fakeFactory) CommandReporter(command string, args []string, postProcess []string) (dto.Reporter, error) {
	if f.err != nil {
		return nil, f.err
	}
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		return dto.TextValue("ok"), nil
	}), nil
}

func builtin(id, name string) *dto.Sensor {
	return &dto.Sensor{ID: id, Name: name, Kind: dto.KindBuiltin}
}

func mustParse(t *testing.T, text string) *conf.Config {
	t.Helper()
	config, err := conf.ParseConfig(text)
	require.NoError(t, err)
	return config
}

func ids(sensors []*dto.Sensor) []string {
	out := make([]string, len(sensors))
	for i, s := range sensors {
		out[i] = s.ID
	}
	return out
}

func TestBuildWithoutConfig(t *testing.T) {
	builtins := []*dto.Sensor{builtin("cpu_usage", "CPU Usage"), builtin("uptime", "Uptime")}

	reg, err := Build(builtins, nil, fakeFactory{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu_usage", "uptime"}, ids(reg.All()))
}

func TestBuildRejectsDuplicateBuiltin(t *testing.T) {
	builtins := []*dto.Sensor{builtin("cpu_usage", "CPU Usage"), builtin("cpu_usage", "CPU Usage Again")}

	_, err := Build(builtins, nil, fakeFactory{})
	var configErr *conf.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "cpu_usage", configErr.Key)
}

func TestCommandSensorAppends(t *testing.T) {
	config := mustParse(t, `
[sensors.ups_load]
type = "command"
name = "UPS Load"
unit = "%"
command = "apcaccess"
args = ["-p", "LOADPCT"]
`)
	builtins := []*dto.Sensor{builtin("cpu_usage", "CPU Usage")}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu_usage", "ups_load"}, ids(reg.All()))

	sensor, ok := reg.Get("ups_load")
	require.True(t, ok)
	assert.Equal(t, dto.KindCommand, sensor.Kind)
	assert.Equal(t, "UPS Load", sensor.Name)
	assert.Equal(t, "%", sensor.Unit)
	assert.Equal(t, "apcaccess", sensor.Command)
	assert.Equal(t, []string{"-p", "LOADPCT"}, sensor.Args)
	require.NotNil(t, sensor.Reporter)
}

func TestCommandSensorReplacesBuiltinInPlace(t *testing.T) {
	config := mustParse(t, `
[sensors.cpu_temp]
type = "command"
name = "CPU Temp From Script"
command = "/usr/local/bin/cputemp.sh"
`)
	builtins := []*dto.Sensor{
		builtin("cpu_usage", "CPU Usage"),
		builtin("cpu_temp", "CPU Temperature"),
		builtin("uptime", "Uptime"),
	}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu_usage", "cpu_temp", "uptime"}, ids(reg.All()))

	sensor, ok := reg.Get("cpu_temp")
	require.True(t, ok)
	assert.Equal(t, dto.KindCommand, sensor.Kind)
	assert.Equal(t, "CPU Temp From Script", sensor.Name)
	assert.Equal(t, "/usr/local/bin/cputemp.sh", sensor.Command)
}

func TestCommandSensorFactoryErrorIsFatal(t *testing.T) {
	config := mustParse(t, `
[sensors.ups_load]
type = "command"
name = "UPS Load"
command = "apcaccess"
post_process = ["NoSuchTransform"]
`)
	factoryErr := fmt.Errorf("unknown transform %q", "NoSuchTransform")

	_, err := Build([]*dto.Sensor{builtin("cpu_usage", "CPU Usage")}, config, fakeFactory{err: factoryErr})
	var configErr *conf.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "ups_load", configErr.Key)
	assert.Contains(t, configErr.Reason, "NoSuchTransform")
}

func TestOverrideByExactID(t *testing.T) {
	config := mustParse(t, `
[sensors.cpu_temp]
type = "override"
name = "CPU Package Temp"
icon = "thermometer"
`)
	builtins := []*dto.Sensor{
		{ID: "cpu_temp", Name: "CPU Temperature", Unit: "°C", DeviceClass: dto.DeviceClassTemperature, Kind: dto.KindBuiltin},
	}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)

	sensor, _ := reg.Get("cpu_temp")
	assert.Equal(t, "CPU Package Temp", sensor.Name)
	assert.Equal(t, "thermometer", sensor.Icon)
	// untouched fields keep their values
	assert.Equal(t, "°C", sensor.Unit)
	assert.Equal(t, dto.DeviceClassTemperature, sensor.DeviceClass)
	assert.Equal(t, dto.KindBuiltin, sensor.Kind)
}

func TestExactIDSharingTokensWithOthersStaysExact(t *testing.T) {
	// both ids share first and last tokens, but a key without "*" selects
	// by full-id equality, never by tokens
	config := mustParse(t, `
[sensors.dockercontainer_plex_cpu]
type = "override"
icon = "chip"
`)
	builtins := []*dto.Sensor{
		builtin("dockercontainer_plex_cpu", "Docker plex CPU"),
		builtin("dockercontainer_sonarr_cpu", "Docker sonarr CPU"),
	}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)

	plex, _ := reg.Get("dockercontainer_plex_cpu")
	sonarr, _ := reg.Get("dockercontainer_sonarr_cpu")
	assert.Equal(t, "chip", plex.Icon)
	assert.Empty(t, sonarr.Icon)
}

func TestOverrideByPattern(t *testing.T) {
	config := mustParse(t, `
[sensors."dockercontainer_*_memory"]
type = "override"
icon = "chip"
disabled = true
`)
	builtins := []*dto.Sensor{
		builtin("dockercontainer_plex_memory", "Docker plex Memory"),
		builtin("dockercontainer_home_assistant_memory", "Docker home_assistant Memory"),
		builtin("dockercontainer_plex_cpu", "Docker plex CPU"),
		builtin("memory_usage", "Memory Usage"),
	}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)

	plex, _ := reg.Get("dockercontainer_plex_memory")
	ha, _ := reg.Get("dockercontainer_home_assistant_memory")
	cpu, _ := reg.Get("dockercontainer_plex_cpu")
	mem, _ := reg.Get("memory_usage")

	assert.Equal(t, "chip", plex.Icon)
	assert.True(t, plex.Disabled)
	assert.Equal(t, "chip", ha.Icon)
	assert.True(t, ha.Disabled)
	assert.Empty(t, cpu.Icon)
	assert.False(t, cpu.Disabled)
	assert.Empty(t, mem.Icon)
}

func TestOverridesApplyInDeclarationOrder(t *testing.T) {
	config := mustParse(t, `
[sensors."dockercontainer_*_cpu"]
type = "override"
name = "Pattern Name"
unit = "pct"

[sensors.dockercontainer_plex_cpu]
type = "override"
name = "Plex CPU"
`)
	builtins := []*dto.Sensor{
		builtin("dockercontainer_plex_cpu", "Docker plex CPU"),
		builtin("dockercontainer_sonarr_cpu", "Docker sonarr CPU"),
	}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)

	plex, _ := reg.Get("dockercontainer_plex_cpu")
	sonarr, _ := reg.Get("dockercontainer_sonarr_cpu")

	// the later exact override wins the name; the earlier pattern's unit
	// survives because the later entry never set one
	assert.Equal(t, "Plex CPU", plex.Name)
	assert.Equal(t, "pct", plex.Unit)
	assert.Equal(t, "Pattern Name", sonarr.Name)
	assert.Equal(t, "pct", sonarr.Unit)
}

func TestOverrideNeverCreatesSensors(t *testing.T) {
	config := mustParse(t, `
[sensors.no_such_sensor]
type = "override"
name = "Ghost"

[sensors."ghost_*_reading"]
type = "override"
name = "Ghost Pattern"
`)
	builtins := []*dto.Sensor{builtin("cpu_usage", "CPU Usage")}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu_usage"}, ids(reg.All()))
}

func TestEdgeStarPatternMatchesNothing(t *testing.T) {
	config := mustParse(t, `
[sensors."*_cpu"]
type = "override"
disabled = true
`)
	builtins := []*dto.Sensor{
		builtin("dockercontainer_plex_cpu", "Docker plex CPU"),
		builtin("cpu_usage", "CPU Usage"),
	}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)
	for _, s := range reg.All() {
		assert.False(t, s.Disabled, "sensor %s", s.ID)
	}
}

func TestDisabledIsTriState(t *testing.T) {
	config := mustParse(t, `
[sensors."dockercontainer_*_uptime"]
type = "override"
disabled = true

[sensors.dockercontainer_plex_uptime]
type = "override"
disabled = false
`)
	builtins := []*dto.Sensor{
		builtin("dockercontainer_plex_uptime", "Docker plex Uptime"),
		builtin("dockercontainer_sonarr_uptime", "Docker sonarr Uptime"),
		builtin("uptime", "Uptime"),
	}

	reg, err := Build(builtins, config, fakeFactory{})
	require.NoError(t, err)

	plex, _ := reg.Get("dockercontainer_plex_uptime")
	sonarr, _ := reg.Get("dockercontainer_sonarr_uptime")
	host, _ := reg.Get("uptime")
	assert.False(t, plex.Disabled, "later disabled = false wins")
	assert.True(t, sonarr.Disabled)
	assert.False(t, host.Disabled, "absent disabled means no change")

	// disabled sensors stay resolvable but drop out of scheduling
	assert.Equal(t, []string{"dockercontainer_plex_uptime", "dockercontainer_sonarr_uptime", "uptime"}, ids(reg.All()))
	assert.Equal(t, []string{"dockercontainer_plex_uptime", "uptime"}, ids(reg.Enabled()))
}

func TestOverrideDeclaredBeforeCommandStillApplies(t *testing.T) {
	// command entries resolve before any override runs, whatever the file
	// order, so a pattern declared above a command entry still patches it
	config := mustParse(t, `
[sensors."ups_*_load"]
type = "override"
icon = "flash"

[sensors.ups_main_load]
type = "command"
name = "UPS Load"
command = "apcaccess"
`)
	reg, err := Build(nil, config, fakeFactory{})
	require.NoError(t, err)

	sensor, ok := reg.Get("ups_main_load")
	require.True(t, ok)
	assert.Equal(t, dto.KindCommand, sensor.Kind)
	assert.Equal(t, "flash", sensor.Icon)
}

func TestApplyOverrideIsIdempotent(t *testing.T) {
	name := "Patched"
	icon := "chip"
	disabled := true
	entry := conf.SensorEntry{Type: conf.TypeOverride, Name: &name, Icon: &icon, Disabled: &disabled}

	sensor := builtin("cpu_usage", "CPU Usage")
	applyOverride(sensor, entry)
	once := *sensor
	applyOverride(sensor, entry)
	assert.Equal(t, once, *sensor)
}

func TestFactoryErrorUnwrapsToConfigError(t *testing.T) {
	config := mustParse(t, `
[sensors.broken]
type = "command"
name = "Broken"
command = "true"
`)
	_, err := Build(nil, config, fakeFactory{err: errors.New("boom")})
	var configErr *conf.ConfigError
	require.ErrorAs(t, err, &configErr)
}
