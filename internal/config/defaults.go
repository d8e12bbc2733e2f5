package config

import "time"

const (
	DefaultStorePath        = "sharekeeper.db"
	DefaultDriverName       = "exportfile"
	DefaultExportPath       = "exports.yaml"
	DefaultManifestPath     = "manifests"
	DefaultWorkers          = 2
	DefaultMaxRetries       = 5
	DefaultInitialBackoff   = time.Second
	DefaultMaxBackoff       = 5 * time.Minute
	DefaultResyncInterval   = 5 * time.Minute
	DefaultDebounceInterval = 500 * time.Millisecond
	DefaultMaxPasses        = 10
	DefaultReconcileTimeout = 2 * time.Minute
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Backend: StoreBackendSQLite,
			Path:    DefaultStorePath,
		},
		Driver: DriverConfig{
			Name:       DefaultDriverName,
			ExportPath: DefaultExportPath,
		},
		Reconciler: ReconcilerConfig{
			Workers:              DefaultWorkers,
			MaxRetries:           DefaultMaxRetries,
			InitialBackoff:       DefaultInitialBackoff,
			MaxBackoff:           DefaultMaxBackoff,
			ResyncInterval:       DefaultResyncInterval,
			DebounceInterval:     DefaultDebounceInterval,
			ManifestPath:         DefaultManifestPath,
			MaxConvergencePasses: DefaultMaxPasses,
			ReconcileTimeout:     DefaultReconcileTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
