package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
	"github.com/mitchellh/mapstructure"
)

// ServerConfig configures the HTTP listener and the state channel.
type ServerConfig struct {
	Listen         string   `yaml:"listen,omitempty" toml:"listen,omitempty" jsonschema:"description=Address the daemon listens on (default: 127.0.0.1:3001)"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" toml:"allowed_origins,omitempty" jsonschema:"description=Browser origins allowed to open the state channel; * allows any"`
	StaticDir      string   `yaml:"static_dir,omitempty" toml:"static_dir,omitempty" jsonschema:"description=Directory of dashboard assets served at /"`
	PingInterval   string   `yaml:"ping_interval,omitempty" toml:"ping_interval,omitempty" jsonschema:"description=Keepalive ping interval (default: 25s)"`
	PongTimeout    string   `yaml:"pong_timeout,omitempty" toml:"pong_timeout,omitempty" jsonschema:"description=Disconnect when no pong arrives within this window (default: 60s)"`
	WriteTimeout   string   `yaml:"write_timeout,omitempty" toml:"write_timeout,omitempty" jsonschema:"description=Deadline for a single frame write (default: 10s)"`
	SendBuffer     int      `yaml:"send_buffer,omitempty" toml:"send_buffer,omitempty" jsonschema:"minimum=1,description=Snapshots queued per session before it is dropped (default: 64)"`
	MaxMessageSize int64    `yaml:"max_message_size,omitempty" toml:"max_message_size,omitempty" jsonschema:"minimum=512,description=Largest inbound state channel frame in bytes (default: 65536)"`
}

// AuthConfig configures token signing and the account file.
type AuthConfig struct {
	Secret    string `yaml:"secret,omitempty" toml:"secret,omitempty" jsonschema:"description=HMAC secret for session tokens (default: $JWT_SECRET)"`
	TokenTTL  string `yaml:"token_ttl,omitempty" toml:"token_ttl,omitempty" jsonschema:"description=Lifetime of issued tokens (default: 1h)"`
	UsersFile string `yaml:"users_file,omitempty" toml:"users_file,omitempty" jsonschema:"description=Path of the JSON account file (default: <data dir>/users.json)"`
}

// EnergyConfig is the tariff used for the energy figures.
type EnergyConfig struct {
	RatePerKWh               float64 `yaml:"rate_per_kwh,omitempty" toml:"rate_per_kwh,omitempty" jsonschema:"exclusiveMinimum=0,description=Electricity price per kWh (default: 0.12)"`
	BulbWatts                float64 `yaml:"bulb_watts,omitempty" toml:"bulb_watts,omitempty" jsonschema:"exclusiveMinimum=0,description=Draw of one bulb at full brightness (default: 60)"`
	ThermostatWattsPerDegree float64 `yaml:"thermostat_watts_per_degree,omitempty" toml:"thermostat_watts_per_degree,omitempty" jsonschema:"exclusiveMinimum=0,description=Thermostat draw per degree of differential (default: 100)"`
	WorstCaseDifferential    float64 `yaml:"worst_case_differential,omitempty" toml:"worst_case_differential,omitempty" jsonschema:"exclusiveMinimum=0,description=Differential assumed for the savings baseline (default: 5)"`
}

// DeviceConfig describes one device of the initial home.
type DeviceConfig struct {
	Kind       string   `yaml:"kind" toml:"kind" jsonschema:"enum=light,enum=thermostat,description=Device kind"`
	Name       string   `yaml:"name,omitempty" toml:"name,omitempty" jsonschema:"description=Display name"`
	On         *bool    `yaml:"on,omitempty" toml:"on,omitempty" jsonschema:"description=Initial power state"`
	Brightness *int     `yaml:"brightness,omitempty" toml:"brightness,omitempty" jsonschema:"minimum=0,maximum=100,description=Light brightness percentage (default: 100)"`
	Count      int      `yaml:"count,omitempty" toml:"count,omitempty" jsonschema:"minimum=1,description=Number of bulbs (default: 1)"`
	Target     *float64 `yaml:"target,omitempty" toml:"target,omitempty" jsonschema:"description=Thermostat target in °F"`
	Current    *float64 `yaml:"current,omitempty" toml:"current,omitempty" jsonschema:"description=Thermostat reading in °F"`
	EcoMode    *bool    `yaml:"eco_mode,omitempty" toml:"eco_mode,omitempty" jsonschema:"description=Thermostat eco mode"`
}

// HomeConfig seeds the state the daemon starts with.
type HomeConfig struct {
	Weather     string                  `yaml:"weather,omitempty" toml:"weather,omitempty" jsonschema:"description=Initial weather label"`
	Temperature *float64                `yaml:"temperature,omitempty" toml:"temperature,omitempty" jsonschema:"description=Initial indoor temperature in °F"`
	Humidity    *float64                `yaml:"humidity,omitempty" toml:"humidity,omitempty" jsonschema:"minimum=30,maximum=60,description=Initial relative humidity"`
	Devices     map[string]DeviceConfig `yaml:"devices,omitempty" toml:"devices,omitempty" jsonschema:"description=Devices keyed by id; replaces the built-in set when given"`
}

// Config is the homed configuration file.
type Config struct {
	Version string        `yaml:"version" toml:"version" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Server  *ServerConfig `yaml:"server,omitempty" toml:"server,omitempty" jsonschema:"description=HTTP and state channel settings"`
	Auth    *AuthConfig   `yaml:"auth,omitempty" toml:"auth,omitempty" jsonschema:"description=Authentication settings"`
	Energy  *EnergyConfig `yaml:"energy,omitempty" toml:"energy,omitempty" jsonschema:"description=Energy tariff"`
	Home    *HomeConfig   `yaml:"home,omitempty" toml:"home,omitempty" jsonschema:"description=Initial home state"`

	// Extensions captures all other top-level keys, such as logging.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// Default values.
const (
	DefaultListen       = "127.0.0.1:3001"
	DefaultPingInterval = "25s"
	DefaultPongTimeout  = "60s"
	DefaultWriteTimeout = "10s"
	DefaultSendBuffer   = 64
	DefaultMaxMessage   = 64 * 1024
	MinMaxMessage       = 512
	DefaultTokenTTL     = "1h"
	DefaultSecret       = "${JWT_SECRET:-your-secret-key}"
)

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.PingInterval == "" {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.PongTimeout == "" {
		c.Server.PongTimeout = DefaultPongTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = DefaultMaxMessage
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = expandEnvVars(DefaultSecret)
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = DefaultTokenTTL
	}

	def := energy.DefaultTariff()
	if c.Energy == nil {
		c.Energy = &EnergyConfig{}
	}
	if c.Energy.RatePerKWh == 0 {
		c.Energy.RatePerKWh = def.RatePerKWh
	}
	if c.Energy.BulbWatts == 0 {
		c.Energy.BulbWatts = def.BulbWatts
	}
	if c.Energy.ThermostatWattsPerDegree == 0 {
		c.Energy.ThermostatWattsPerDegree = def.ThermostatWattsPerDegree
	}
	if c.Energy.WorstCaseDifferential == 0 {
		c.Energy.WorstCaseDifferential = def.WorstCaseDifferential
	}

	if c.Home == nil {
		c.Home = &HomeConfig{}
	}
}

// Tariff returns the configured energy tariff.
func (c *Config) Tariff() energy.Tariff {
	t := energy.DefaultTariff()
	if c.Energy == nil {
		return t
	}
	if c.Energy.RatePerKWh > 0 {
		t.RatePerKWh = c.Energy.RatePerKWh
	}
	if c.Energy.BulbWatts > 0 {
		t.BulbWatts = c.Energy.BulbWatts
	}
	if c.Energy.ThermostatWattsPerDegree > 0 {
		t.ThermostatWattsPerDegree = c.Energy.ThermostatWattsPerDegree
	}
	if c.Energy.WorstCaseDifferential > 0 {
		t.WorstCaseDifferential = c.Energy.WorstCaseDifferential
	}
	return t
}

// InitialState builds the state the daemon starts with. Without a home
// section this is the built-in three-device home.
func (c *Config) InitialState() models.State {
	state := models.DefaultState()
	if c.Home == nil {
		return state
	}

	if c.Home.Weather != "" {
		state.Environment.Weather = c.Home.Weather
	}
	if c.Home.Temperature != nil {
		state.Environment.Temperature = *c.Home.Temperature
	}
	if c.Home.Humidity != nil {
		state.Environment.Humidity = models.ClampHumidity(*c.Home.Humidity)
	}

	if len(c.Home.Devices) > 0 {
		state.Devices = make(map[string]models.Device, len(c.Home.Devices))
		for id, dc := range c.Home.Devices {
			state.Devices[id] = dc.device(id, state.Environment.Temperature)
		}
	}
	return state
}

func (dc DeviceConfig) device(id string, ambient float64) models.Device {
	d := models.Device{Kind: models.DeviceKind(dc.Kind), Name: dc.Name}
	if d.Name == "" {
		d.Name = id
	}
	if dc.On != nil {
		d.On = *dc.On
	}

	switch d.Kind {
	case models.KindLight:
		d.Brightness = 100
		if dc.Brightness != nil {
			d.Brightness = *dc.Brightness
		}
		d.Count = dc.Count
		if d.Count == 0 {
			d.Count = 1
		}
	case models.KindThermostat:
		d.Target, d.Current = ambient, ambient
		if dc.Target != nil {
			d.Target = *dc.Target
		}
		if dc.Current != nil {
			d.Current = *dc.Current
		}
		if dc.EcoMode != nil {
			d.EcoMode = *dc.EcoMode
		}
	}
	return d
}

// Durations holds the parsed server and auth durations.
type Durations struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	TokenTTL     time.Duration
}

// ParseDurations parses the duration strings of a defaulted config.
func (c *Config) ParseDurations() (Durations, error) {
	var d Durations
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"server.ping_interval", c.Server.PingInterval, &d.PingInterval},
		{"server.pong_timeout", c.Server.PongTimeout, &d.PongTimeout},
		{"server.write_timeout", c.Server.WriteTimeout, &d.WriteTimeout},
		{"auth.token_ttl", c.Auth.TokenTTL, &d.TokenTTL},
	}
	for _, f := range fields {
		v, err := time.ParseDuration(f.value)
		if err != nil {
			return Durations{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if v <= 0 {
			return Durations{}, fmt.Errorf("%s: must be positive", f.name)
		}
		*f.dst = v
	}
	return d, nil
}

// ExtensionKeys returns the names of the extension sections, sorted.
func (c *Config) ExtensionKeys() []string {
	keys := make([]string, 0, len(c.Extensions))
	for k := range c.Extensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalExtension decodes the extension section under key into target,
// which must be a pointer. A missing section leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}
	return nil
}

// ConfigSource identifies the origin of a configuration layer.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceGlobal   ConfigSource = "global"
	SourceProject  ConfigSource = "project"
	SourceOverride ConfigSource = "override"
)

// Layer is one configuration file that contributed to the merged config.
type Layer struct {
	Source ConfigSource
	Path   string
}
