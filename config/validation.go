package config

import (
	"fmt"
	"net"
	"regexp"
	"sort"

	"github.com/grovetools/homed/pkg/models"
)

var deviceIDRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateSemantics checks what the schema cannot express. It expects a
// config with defaults applied.
func (c *Config) ValidateSemantics() error {
	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	if c.Server.SendBuffer < 1 {
		return fmt.Errorf("server.send_buffer must be at least 1")
	}
	if c.Server.MaxMessageSize < MinMaxMessage {
		return fmt.Errorf("server.max_message_size must be at least %d", MinMaxMessage)
	}
	if _, err := c.ParseDurations(); err != nil {
		return err
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must not be empty")
	}

	t := c.Tariff()
	if c.Energy.RatePerKWh <= 0 || t.BulbWatts <= 0 || t.ThermostatWattsPerDegree <= 0 || t.WorstCaseDifferential <= 0 {
		return fmt.Errorf("energy values must be positive")
	}

	if c.Home.Humidity != nil {
		if h := *c.Home.Humidity; h < models.MinHumidity || h > models.MaxHumidity {
			return fmt.Errorf("home.humidity %.1f outside [%.0f, %.0f]", h, models.MinHumidity, models.MaxHumidity)
		}
	}

	ids := make([]string, 0, len(c.Home.Devices))
	for id := range c.Home.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := validateDevice(id, c.Home.Devices[id]); err != nil {
			return fmt.Errorf("home.devices.%s: %w", id, err)
		}
	}
	return nil
}

func validateDevice(id string, d DeviceConfig) error {
	if !deviceIDRegex.MatchString(id) {
		return fmt.Errorf("invalid device id")
	}
	switch models.DeviceKind(d.Kind) {
	case models.KindLight:
		if d.Brightness != nil && (*d.Brightness < 0 || *d.Brightness > 100) {
			return fmt.Errorf("brightness must be between 0 and 100")
		}
		if d.Count < 0 {
			return fmt.Errorf("count must be at least 1")
		}
		if d.Target != nil || d.Current != nil || d.EcoMode != nil {
			return fmt.Errorf("thermostat fields set on a light")
		}
	case models.KindThermostat:
		if d.Brightness != nil || d.Count != 0 {
			return fmt.Errorf("light fields set on a thermostat")
		}
	default:
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	return nil
}
