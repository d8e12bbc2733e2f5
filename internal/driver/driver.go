// Package driver resolves the configured storage backend driver by name.
package driver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/internal/config"
	"github.com/giantswarm/sharekeeper/internal/driver/exportfile"
	"github.com/giantswarm/sharekeeper/internal/driver/memory"
)

// Factory builds a driver from configuration.
type Factory func(cfg config.DriverConfig) (api.Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		memory.Name: func(cfg config.DriverConfig) (api.Driver, error) {
			return memory.New(memory.Options{
				MigrationReadOnlyRulesSupport: cfg.MigrationReadOnlyRulesSupport,
				IssueAccessKeys:               cfg.IssueAccessKeys,
			}), nil
		},
		exportfile.Name: func(cfg config.DriverConfig) (api.Driver, error) {
			if cfg.ExportPath == "" {
				return nil, fmt.Errorf("driver %s requires exportPath", exportfile.Name)
			}
			return exportfile.New(cfg.ExportPath, api.DriverConfig{
				MigrationReadOnlyRulesSupport: cfg.MigrationReadOnlyRulesSupport,
			}), nil
		},
	}
)

// Register adds or replaces a driver factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Names returns the registered driver names in order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the driver named in cfg.
func New(cfg config.DriverConfig) (api.Driver, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", api.ErrDriverNotRegistered, cfg.Name)
	}
	return f(cfg)
}
