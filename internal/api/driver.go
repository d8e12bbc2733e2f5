package api

import "context"

// DriverConfig exposes the driver settings the access engine consults.
type DriverConfig struct {
	// MigrationReadOnlyRulesSupport reports whether the backend keeps
	// enforcing the existing rules (read-only) while an instance migrates.
	// When false, enforcement is suspended for the duration of a migration.
	MigrationReadOnlyRulesSupport bool
}

// UpdateResult is the outcome of a bulk UpdateAccess call.
type UpdateResult struct {
	// NotSupported is set by drivers that do not implement bulk
	// reconciliation. The engine then falls back to AllowAccess/DenyAccess.
	NotSupported bool

	// AccessKeys is the access-key payload as decoded from the backend:
	// nil, map[string]string or map[string]any keyed by rule id. The engine
	// validates its shape before persisting anything.
	AccessKeys any
}

// NotSupported is the result bulk-incapable drivers return from UpdateAccess.
func NotSupported() UpdateResult {
	return UpdateResult{NotSupported: true}
}

// BulkDriver reconciles the complete rule set of an instance in one call.
type BulkDriver interface {
	// UpdateAccess makes the backend enforce existing plus addRules and stop
	// enforcing deleteRules. server is nil for instances without a share
	// server.
	UpdateAccess(ctx context.Context, instance *ShareInstance, existing, addRules, deleteRules []AccessRule, server *ShareServer) (UpdateResult, error)

	// Configuration returns the settings the engine needs from the driver.
	Configuration() DriverConfig
}

// IncrementalDriver applies one rule at a time. It is the fallback for
// drivers whose UpdateAccess reports NotSupported.
type IncrementalDriver interface {
	AllowAccess(ctx context.Context, instance *ShareInstance, rule AccessRule, server *ShareServer) error
	DenyAccess(ctx context.Context, instance *ShareInstance, rule AccessRule, server *ShareServer) error
}

// Driver is a storage backend adapter.
type Driver interface {
	BulkDriver
	IncrementalDriver

	// Name identifies the driver in logs and configuration.
	Name() string
}
