package config

import "testing"

func ptr[T any](v T) *T { return &v }

func TestMergeConfigs(t *testing.T) {
	base := &Config{
		Version: "1.0",
		Server:  &ServerConfig{Listen: "127.0.0.1:3001", AllowedOrigins: []string{"http://a"}},
		Energy:  &EnergyConfig{RatePerKWh: 0.12, BulbWatts: 60},
		Home: &HomeConfig{
			Weather: "sunny",
			Devices: map[string]DeviceConfig{
				"porch": {Kind: "light", Count: 1},
				"hall":  {Kind: "light", Count: 2},
			},
		},
		Extensions: map[string]interface{}{
			"logging": map[string]interface{}{"level": "info", "format": map[string]interface{}{"preset": "default"}},
		},
	}
	override := &Config{
		Server: &ServerConfig{Listen: ":4000"},
		Auth:   &AuthConfig{TokenTTL: "2h"},
		Energy: &EnergyConfig{RatePerKWh: 0.2},
		Home: &HomeConfig{
			Humidity: ptr(50.0),
			Devices:  map[string]DeviceConfig{"hall": {Kind: "light", Count: 3}},
		},
		Extensions: map[string]interface{}{
			"logging": map[string]interface{}{"level": "debug"},
			"tui":     map[string]interface{}{"theme": "terminal"},
		},
	}

	got := mergeConfigs(base, override)

	if got.Version != "1.0" {
		t.Errorf("version: got %q", got.Version)
	}
	if got.Server.Listen != ":4000" {
		t.Errorf("listen: got %q", got.Server.Listen)
	}
	if len(got.Server.AllowedOrigins) != 1 {
		t.Errorf("allowed origins should be kept, got %v", got.Server.AllowedOrigins)
	}
	if got.Auth == nil || got.Auth.TokenTTL != "2h" {
		t.Errorf("auth: got %+v", got.Auth)
	}
	if got.Energy.RatePerKWh != 0.2 || got.Energy.BulbWatts != 60 {
		t.Errorf("energy: got %+v", got.Energy)
	}
	if got.Home.Weather != "sunny" || got.Home.Humidity == nil || *got.Home.Humidity != 50 {
		t.Errorf("home: got %+v", got.Home)
	}
	if len(got.Home.Devices) != 2 || got.Home.Devices["hall"].Count != 3 || got.Home.Devices["porch"].Count != 1 {
		t.Errorf("devices should merge per id, got %+v", got.Home.Devices)
	}

	logging := got.Extensions["logging"].(map[string]interface{})
	if logging["level"] != "debug" || logging["format"] == nil {
		t.Errorf("logging extension should merge keys, got %v", logging)
	}
	if _, ok := got.Extensions["tui"]; !ok {
		t.Error("tui extension missing")
	}

	if base.Server.Listen != "127.0.0.1:3001" || len(base.Home.Devices) != 2 || base.Home.Devices["hall"].Count != 2 {
		t.Error("base config was modified")
	}
}
