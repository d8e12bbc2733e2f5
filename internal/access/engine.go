package access

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

const subsystem = "AccessEngine"

// DefaultMaxPasses bounds how many reconciliation passes a single
// UpdateAccessRules call may run while the stored rule set keeps changing.
const DefaultMaxPasses = 10

// Observer is notified after every reconciliation pass.
type Observer interface {
	PassCompleted(instanceID string, pass int, err error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPasses sets the convergence pass limit. Values below 1 are ignored.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// WithObserver registers an observer for pass outcomes.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// Engine reconciles the access rules recorded for share instances against
// the rules enforced by a driver.
//
// Engine holds no per-instance state and takes no locks: concurrent callers
// on the same instance are tolerated by re-checking the stored rule set
// after every pass and running another pass if it changed.
type Engine struct {
	store     api.RuleStore
	driver    api.Driver
	maxPasses int
	observer  Observer
}

// NewEngine creates an access engine.
func NewEngine(store api.RuleStore, driver api.Driver, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		driver:    driver,
		maxPasses: DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// batch is the caller-supplied change set of one UpdateAccessRules call.
type batch struct {
	add []api.AccessRule
	del []api.AccessRule

	// deleteAll replaces del with every stored rule of the instance.
	deleteAll bool
}

// UpdateAccessRules makes the driver enforce the rules recorded for the
// instance. addRules must already be persisted by the caller; deleteRules
// are removed from the store once the pass completes, whether or not they
// were forwarded to the driver.
//
// On a driver failure the instance's access-rules status is set to error
// and the driver's error is returned. An access-key payload that does not
// match the processed rules yields an InvalidError and leaves the status
// untouched. Otherwise the status becomes active.
func (e *Engine) UpdateAccessRules(ctx context.Context, instanceID string, addRules, deleteRules []api.AccessRule) error {
	return e.run(ctx, instanceID, batch{add: addRules, del: deleteRules})
}

// DenyAllAccess removes every rule of the instance from the backend and the
// store. It is used when an instance is deleted or its rules are cleared.
func (e *Engine) DenyAllAccess(ctx context.Context, instanceID string) error {
	return e.run(ctx, instanceID, batch{deleteAll: true})
}

func (e *Engine) run(ctx context.Context, instanceID string, b batch) error {
	for pass := 1; pass <= e.maxPasses; pass++ {
		drifted, err := e.reconcilePass(ctx, instanceID, b)
		if e.observer != nil {
			e.observer.PassCompleted(instanceID, pass, err)
		}
		if err != nil {
			return err
		}

		if !drifted {
			if err := e.store.SetAccessRulesStatus(ctx, instanceID, api.AccessRulesActive); err != nil {
				return fmt.Errorf("failed to mark access rules of %s active: %w", instanceID, err)
			}
			logging.Info(subsystem, "Access rules of share instance %s are active (passes: %d)", instanceID, pass)
			return nil
		}

		logging.Info(subsystem, "Access rules of share instance %s changed during pass %d, refreshing", instanceID, pass)
		// Follow-up passes only pick up what changed in the store.
		b = batch{}
	}

	logging.Warn(subsystem, "Access rules of share instance %s still changing after %d passes", instanceID, e.maxPasses)
	return &api.ConvergenceError{InstanceID: instanceID, Passes: e.maxPasses}
}

// reconcilePass runs a single pass and reports whether the stored rule set
// drifted while it was in flight.
func (e *Engine) reconcilePass(ctx context.Context, instanceID string, b batch) (bool, error) {
	instance, err := e.store.GetShareInstance(ctx, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to get share instance %s: %w", instanceID, err)
	}

	stored, err := e.store.ListAccessRules(ctx, instance.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list access rules of %s: %w", instance.ID, err)
	}

	server, err := e.shareServer(ctx, instance)
	if err != nil {
		return false, err
	}

	var existing, deleteRules []api.AccessRule
	if b.deleteAll {
		deleteRules = stored
	} else {
		deleteRules = b.del
		existing = withoutRules(stored, deleteRules)
	}

	// The store is always cleaned up with the requested deletions, even
	// when they are withheld from the driver below.
	removeRules := deleteRules

	driverExisting, driverAdd, driverDelete := existing, b.add, deleteRules

	if instance.InMaintenance() && len(driverDelete) > 0 {
		// The backend may never have applied these rules.
		logging.Debug(subsystem, "Share instance %s is in maintenance mode, withholding %d deletions from driver",
			instance.ID, len(driverDelete))
		driverDelete = nil
	}

	if instance.IsMigrating() {
		if !e.driver.Configuration().MigrationReadOnlyRulesSupport {
			driverExisting = nil
		}
		driverAdd, driverDelete = nil, nil
		logging.Debug(subsystem, "Share instance %s is migrating, presenting %d rules to driver %s",
			instance.ID, len(driverExisting), e.driver.Name())
	}

	payload, err := e.applyToDriver(ctx, instance, driverExisting, driverAdd, driverDelete, server)
	if err != nil {
		if statusErr := e.store.SetAccessRulesStatus(ctx, instance.ID, api.AccessRulesError); statusErr != nil {
			logging.Error(subsystem, statusErr, "Failed to mark access rules of %s as error", instance.ID)
		}
		logging.Error(subsystem, err, "Driver %s failed to update access rules of %s", e.driver.Name(), instance.ID)
		return false, err
	}

	processed := make([]api.AccessRule, 0, len(driverExisting)+len(driverAdd))
	processed = append(processed, driverExisting...)
	processed = append(processed, driverAdd...)

	keys, err := validateAccessKeys(payload, processed)
	if err != nil {
		logging.Warn(subsystem, "Driver %s returned invalid access keys for %s: %v", e.driver.Name(), instance.ID, err)
		return false, err
	}
	if err := e.storeAccessKeys(ctx, keys); err != nil {
		return false, err
	}

	if err := e.store.RemoveAccessRules(ctx, instance.ID, removeRules); err != nil {
		return false, fmt.Errorf("failed to remove access rules of %s: %w", instance.ID, err)
	}

	return e.needsRefresh(ctx, instance.ID, existing)
}

// applyToDriver calls the bulk operation and falls back to the incremental
// one when the driver does not support it. It returns the raw access-key
// payload of the bulk call.
func (e *Engine) applyToDriver(ctx context.Context, instance *api.ShareInstance, existing, addRules, deleteRules []api.AccessRule, server *api.ShareServer) (any, error) {
	result, err := e.driver.UpdateAccess(ctx, instance, existing, addRules, deleteRules, server)
	if err != nil {
		return nil, err
	}
	if !result.NotSupported {
		return result.AccessKeys, nil
	}

	logging.Debug(subsystem, "Driver %s has no bulk access update, applying %d additions and %d deletions one by one",
		e.driver.Name(), len(addRules), len(deleteRules))

	return nil, e.applyIncrementally(ctx, instance, addRules, deleteRules, server)
}

// applyIncrementally allows and denies rules one at a time. Calls that
// already succeeded are not undone when a later one fails.
func (e *Engine) applyIncrementally(ctx context.Context, instance *api.ShareInstance, addRules, deleteRules []api.AccessRule, server *api.ShareServer) error {
	for _, rule := range addRules {
		if err := e.driver.AllowAccess(ctx, instance, rule, server); err != nil {
			return err
		}
	}

	for _, rule := range deleteRules {
		if err := e.driver.DenyAccess(ctx, instance, rule, server); err != nil {
			if api.IsNotFound(err) {
				logging.Warn(subsystem, "Access rule %s was already gone from driver %s", rule.ID, e.driver.Name())
				continue
			}
			return err
		}
	}

	return nil
}

func (e *Engine) storeAccessKeys(ctx context.Context, keys map[string]string) error {
	for _, ruleID := range sets.List(sets.KeySet(keys)) {
		err := e.store.SetAccessKey(ctx, ruleID, keys[ruleID])
		if api.IsNotFound(err) {
			logging.Debug(subsystem, "Rule %s was deleted before its access key was stored", ruleID)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store access key of rule %s: %w", ruleID, err)
		}
	}
	return nil
}

// needsRefresh reports whether the stored rules differ from the rules the
// pass worked with.
func (e *Engine) needsRefresh(ctx context.Context, instanceID string, rules []api.AccessRule) (bool, error) {
	current, err := e.store.ListAccessRules(ctx, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to re-read access rules of %s: %w", instanceID, err)
	}

	return !sets.New(api.RuleIDs(rules)...).Equal(sets.New(api.RuleIDs(current)...)), nil
}

func (e *Engine) shareServer(ctx context.Context, instance *api.ShareInstance) (*api.ShareServer, error) {
	if instance.ShareServerID == "" {
		return nil, nil
	}
	server, err := e.store.GetShareServer(ctx, instance.ShareServerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get share server of %s: %w", instance.ID, err)
	}
	return server, nil
}

// withoutRules returns rules minus the ones whose id appears in remove.
func withoutRules(rules, remove []api.AccessRule) []api.AccessRule {
	if len(remove) == 0 {
		return rules
	}
	drop := sets.New(api.RuleIDs(remove)...)
	kept := make([]api.AccessRule, 0, len(rules))
	for _, r := range rules {
		if !drop.Has(r.ID) {
			kept = append(kept, r)
		}
	}
	return kept
}
