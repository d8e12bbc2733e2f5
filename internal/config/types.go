package config

import "time"

// Config is the top-level configuration structure for sharekeeper.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Driver     DriverConfig     `yaml:"driver"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreBackend selects where access rules are recorded.
type StoreBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendSQLite   StoreBackend = "sqlite"
	StoreBackendPostgres StoreBackend = "postgres"
)

// StoreConfig defines the rule store backend.
type StoreConfig struct {
	Backend StoreBackend `yaml:"backend,omitempty"` // Store backend (default: sqlite)
	Path    string       `yaml:"path,omitempty"`    // SQLite database file; relative paths resolve against the config directory
	DSN     string       `yaml:"dsn,omitempty"`     // PostgreSQL connection string
}

// DriverConfig defines the storage backend driver.
type DriverConfig struct {
	Name       string `yaml:"name,omitempty"`       // Registered driver name (default: exportfile)
	ExportPath string `yaml:"exportPath,omitempty"` // Exports file used by the exportfile driver

	// MigrationReadOnlyRulesSupport keeps existing rules enforced while an
	// instance migrates.
	MigrationReadOnlyRulesSupport bool `yaml:"migrationReadOnlyRulesSupport,omitempty"`

	// IssueAccessKeys makes the memory driver hand out a key per rule.
	IssueAccessKeys bool `yaml:"issueAccessKeys,omitempty"`
}

// ReconcilerConfig configures the manifest reconciler run by "sharekeeper serve".
type ReconcilerConfig struct {
	Workers              int           `yaml:"workers,omitempty"`              // Concurrent reconcile workers (default: 2)
	MaxRetries           int           `yaml:"maxRetries,omitempty"`           // Retries before an item is dropped (default: 5)
	InitialBackoff       time.Duration `yaml:"initialBackoff,omitempty"`       // First retry delay (default: 1s)
	MaxBackoff           time.Duration `yaml:"maxBackoff,omitempty"`           // Retry delay cap (default: 5m)
	ResyncInterval       time.Duration `yaml:"resyncInterval,omitempty"`       // Periodic resync of out-of-sync instances; 0 disables it
	DebounceInterval     time.Duration `yaml:"debounceInterval,omitempty"`     // Manifest change debounce (default: 500ms)
	ManifestPath         string        `yaml:"manifestPath,omitempty"`         // Directory holding shares/<instance>.yaml; relative to the config directory
	PruneOnDelete        bool          `yaml:"pruneOnDelete,omitempty"`        // Deny all access when a manifest is removed
	MaxConvergencePasses int           `yaml:"maxConvergencePasses,omitempty"` // Pass limit of one engine call (default: 10)
	ReconcileTimeout     time.Duration `yaml:"reconcileTimeout,omitempty"`     // Deadline of a single reconcile (default: 2m)
}

// LoggingConfig configures the default log level. The --debug flag wins.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn or error (default: info)
}
