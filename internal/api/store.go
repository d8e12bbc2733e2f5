package api

import "context"

// RuleStore is the persistence contract the access engine depends on.
// Every call is expected to be individually atomic; no transaction spans
// several calls.
type RuleStore interface {
	// GetShareInstance returns the share instance or a NotFoundError.
	GetShareInstance(ctx context.Context, instanceID string) (*ShareInstance, error)

	// ListAccessRules returns every rule currently recorded for the instance.
	ListAccessRules(ctx context.Context, instanceID string) ([]AccessRule, error)

	// RemoveAccessRules deletes the given rules of the instance. Rules that
	// are already gone are ignored.
	RemoveAccessRules(ctx context.Context, instanceID string, rules []AccessRule) error

	// SetAccessKey attaches a driver-issued key to a rule.
	SetAccessKey(ctx context.Context, ruleID, accessKey string) error

	// SetAccessRulesStatus writes the access-rules status of the instance.
	SetAccessRulesStatus(ctx context.Context, instanceID string, status AccessRulesStatus) error

	// GetShareServer returns the share server or a NotFoundError.
	GetShareServer(ctx context.Context, serverID string) (*ShareServer, error)
}

// Store is a RuleStore with the record management the CLI and the
// reconcile manager need on top.
type Store interface {
	RuleStore

	CreateShareInstance(ctx context.Context, instance ShareInstance) error
	ListShareInstances(ctx context.Context) ([]ShareInstance, error)
	SetShareInstanceStatus(ctx context.Context, instanceID string, status InstanceStatus) error

	CreateAccessRule(ctx context.Context, rule AccessRule) error
	GetAccessRule(ctx context.Context, ruleID string) (*AccessRule, error)

	CreateShareServer(ctx context.Context, server ShareServer) error

	Close() error
}
