package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/sharekeeper/pkg/logging"
)

const (
	userConfigDir  = ".config/sharekeeper"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults and
// validates the result. A missing file yields the defaults. Relative file
// paths in the result are resolved against configPath.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	config.resolvePaths(configPath)

	if errs := config.Validate(configFilePath); errs.HasErrors() {
		return Config{}, errs
	}
	return config, nil
}

func (c *Config) resolvePaths(base string) {
	c.Store.Path = resolvePath(base, c.Store.Path)
	c.Driver.ExportPath = resolvePath(base, c.Driver.ExportPath)
	c.Reconciler.ManifestPath = resolvePath(base, c.Reconciler.ManifestPath)
}

func resolvePath(base, p string) string {
	// ":memory:" is a SQLite special name, not a file.
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
