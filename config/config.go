// Package config loads the layered homed configuration.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Project config names, searched upward from the working directory.
var configNames = []string{
	"homed.yml",
	"homed.yaml",
	"homed.toml",
	".homed.yml",
	".homed.yaml",
}

// Override files, applied over the project config in this order.
var overrideNames = []string{
	"homed.override.yml",
	"homed.override.yaml",
	".homed.override.yml",
	".homed.override.yaml",
}

// Load reads, defaults and validates a single configuration file.
func Load(path string) (*Config, error) {
	cfg, err := readLayer(path)
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

// LoadFromBytes parses YAML configuration from data.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parse(data, ".yml")
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

// LoadDefault loads the layered configuration for the working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging:
// 1. Global config (homed.toml or homed.yml in the config dir) - base layer
// 2. Project config (homed.yml found upward from startDir) - overrides global
// 3. Local override (homed.override.yml) - overrides all
//
// Every layer is optional; with none the defaults apply.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger is LoadFrom with debug output on logger.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	layered, err := LoadLayered(startDir)
	if err != nil {
		return nil, err
	}
	for _, l := range layered.Layers {
		logger.WithFields(logrus.Fields{"source": l.Source, "path": l.Path}).Debug("Loaded configuration layer")
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(layered.Final); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(data))
		}
	}
	return layered.Final, nil
}

// LayeredConfig holds the files that contributed to a configuration and
// the merged, validated result.
type LayeredConfig struct {
	Layers []Layer
	Final  *Config
}

// LoadLayered finds and merges every configuration layer for startDir.
func LoadLayered(startDir string) (*LayeredConfig, error) {
	layered := &LayeredConfig{}
	merged := &Config{}

	apply := func(source ConfigSource, path string) error {
		cfg, err := readLayer(path)
		if err != nil {
			return err
		}
		merged = mergeConfigs(merged, cfg)
		layered.Layers = append(layered.Layers, Layer{Source: source, Path: path})
		return nil
	}

	if globalPath := GlobalConfigPath(); globalPath != "" {
		if err := apply(SourceGlobal, globalPath); err != nil {
			return nil, err
		}
	}

	projectPath, err := FindConfigFile(startDir)
	if err == nil {
		if err := apply(SourceProject, projectPath); err != nil {
			return nil, err
		}
		dir := filepath.Dir(projectPath)
		for _, name := range overrideNames {
			path := filepath.Join(dir, name)
			if isFile(path) {
				if err := apply(SourceOverride, path); err != nil {
					return nil, err
				}
			}
		}
	} else if !errors.Is(err, errors.ErrCodeConfigNotFound) {
		return nil, err
	}

	final, err := finalize(merged)
	if err != nil {
		return nil, err
	}
	layered.Final = final
	return layered, nil
}

// WatchDirs returns the directories whose files can change the layered
// configuration for startDir.
func WatchDirs(startDir string) []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	add(paths.ConfigDir())
	if projectPath, err := FindConfigFile(startDir); err == nil {
		add(filepath.Dir(projectPath))
	} else {
		add(startDir)
	}
	return dirs
}

// IsConfigFile reports whether name is one of the files LoadLayered reads.
func IsConfigFile(name string) bool {
	base := filepath.Base(name)
	for _, group := range [][]string{configNames, overrideNames} {
		for _, n := range group {
			if base == n {
				return true
			}
		}
	}
	return false
}

// FindConfigFile searches from startDir up to the filesystem root for a
// project config file.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if isFile(path) {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// GlobalConfigPath returns the global config file, preferring TOML, or ""
// when there is none.
func GlobalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"homed.toml", "homed.yml", "homed.yaml"} {
		path := filepath.Join(dir, name)
		if isFile(path) {
			return path
		}
	}
	return ""
}

// finalize applies defaults and runs schema and semantic validation.
func finalize(cfg *Config) (*Config, error) {
	cfg.SetDefaults()

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}
	if err := cfg.ValidateSemantics(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "semantic validation failed")
	}
	return cfg, nil
}

func readLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	cfg, err := parse(data, filepath.Ext(path))
	if err != nil {
		if he, ok := err.(*errors.HomeError); ok {
			return nil, he.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// parse decodes one layer without defaults or validation.
func parse(data []byte, ext string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))
	var cfg Config

	if ext == ".toml" {
		if err := toml.NewDecoder(bytes.NewReader(expanded)).Decode(&cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
		// TOML has no inline maps; collect the unknown tables separately.
		var raw map[string]interface{}
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
		for key, value := range raw {
			switch key {
			case "version", "server", "auth", "energy", "home":
				continue
			}
			if cfg.Extensions == nil {
				cfg.Extensions = make(map[string]interface{})
			}
			cfg.Extensions[key] = value
		}
		return &cfg, nil
	}

	// Unknown top-level keys land in Extensions; unknown keys inside a
	// known section are errors.
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
