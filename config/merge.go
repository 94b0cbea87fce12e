package config

// mergeConfigs merges override configuration into base. Non-zero fields of
// override win; device maps merge per device id.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.Server != nil {
		result.Server = mergeServer(result.Server, override.Server)
	}
	if override.Auth != nil {
		result.Auth = mergeAuth(result.Auth, override.Auth)
	}
	if override.Energy != nil {
		result.Energy = mergeEnergy(result.Energy, override.Energy)
	}
	if override.Home != nil {
		result.Home = mergeHome(result.Home, override.Home)
	}

	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for key, value := range result.Extensions {
			merged[key] = value
		}
		for key, value := range override.Extensions {
			// If both base and override have the same extension key, merge them
			if baseMap, ok := merged[key].(map[string]interface{}); ok {
				if overrideMap, ok := value.(map[string]interface{}); ok {
					m := make(map[string]interface{}, len(baseMap)+len(overrideMap))
					for k, v := range baseMap {
						m[k] = v
					}
					for k, v := range overrideMap {
						m[k] = v
					}
					merged[key] = m
					continue
				}
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeServer(base, override *ServerConfig) *ServerConfig {
	result := ServerConfig{}
	if base != nil {
		result = *base
	}
	if override.Listen != "" {
		result.Listen = override.Listen
	}
	if len(override.AllowedOrigins) > 0 {
		result.AllowedOrigins = override.AllowedOrigins
	}
	if override.StaticDir != "" {
		result.StaticDir = override.StaticDir
	}
	if override.PingInterval != "" {
		result.PingInterval = override.PingInterval
	}
	if override.PongTimeout != "" {
		result.PongTimeout = override.PongTimeout
	}
	if override.WriteTimeout != "" {
		result.WriteTimeout = override.WriteTimeout
	}
	if override.SendBuffer != 0 {
		result.SendBuffer = override.SendBuffer
	}
	if override.MaxMessageSize != 0 {
		result.MaxMessageSize = override.MaxMessageSize
	}
	return &result
}

func mergeAuth(base, override *AuthConfig) *AuthConfig {
	result := AuthConfig{}
	if base != nil {
		result = *base
	}
	if override.Secret != "" {
		result.Secret = override.Secret
	}
	if override.TokenTTL != "" {
		result.TokenTTL = override.TokenTTL
	}
	if override.UsersFile != "" {
		result.UsersFile = override.UsersFile
	}
	return &result
}

func mergeEnergy(base, override *EnergyConfig) *EnergyConfig {
	result := EnergyConfig{}
	if base != nil {
		result = *base
	}
	if override.RatePerKWh != 0 {
		result.RatePerKWh = override.RatePerKWh
	}
	if override.BulbWatts != 0 {
		result.BulbWatts = override.BulbWatts
	}
	if override.ThermostatWattsPerDegree != 0 {
		result.ThermostatWattsPerDegree = override.ThermostatWattsPerDegree
	}
	if override.WorstCaseDifferential != 0 {
		result.WorstCaseDifferential = override.WorstCaseDifferential
	}
	return &result
}

func mergeHome(base, override *HomeConfig) *HomeConfig {
	result := HomeConfig{}
	if base != nil {
		result = *base
	}
	if override.Weather != "" {
		result.Weather = override.Weather
	}
	if override.Temperature != nil {
		result.Temperature = override.Temperature
	}
	if override.Humidity != nil {
		result.Humidity = override.Humidity
	}
	if len(override.Devices) > 0 {
		devices := make(map[string]DeviceConfig, len(result.Devices)+len(override.Devices))
		for id, d := range result.Devices {
			devices[id] = d
		}
		for id, d := range override.Devices {
			devices[id] = d
		}
		result.Devices = devices
	}
	return &result
}
