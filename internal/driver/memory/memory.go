// Package memory is an in-process storage backend. It enforces rules in a
// map, can issue access keys and can be told to fail, which makes it the
// driver of choice for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// Name is the registry name of the driver.
const Name = "memory"

// Operation names a driver call for failure injection.
type Operation string

const (
	OpUpdate Operation = "update"
	OpAllow  Operation = "allow"
	OpDeny   Operation = "deny"
)

// Options configures the driver.
type Options struct {
	MigrationReadOnlyRulesSupport bool

	// IssueAccessKeys makes UpdateAccess return a key for every processed
	// rule. Keys are stable per rule.
	IssueAccessKeys bool
}

// Driver keeps the enforced rules of every instance in memory.
type Driver struct {
	mu sync.Mutex

	opts     Options
	enforced map[string]map[string]api.AccessRule
	keys     map[string]string
	failures map[Operation]error
	calls    map[Operation]int
}

var _ api.Driver = (*Driver)(nil)

// New creates a driver with nothing enforced.
func New(opts Options) *Driver {
	return &Driver{
		opts:     opts,
		enforced: make(map[string]map[string]api.AccessRule),
		keys:     make(map[string]string),
		failures: make(map[Operation]error),
		calls:    make(map[Operation]int),
	}
}

func (d *Driver) Name() string {
	return Name
}

func (d *Driver) Configuration() api.DriverConfig {
	return api.DriverConfig{MigrationReadOnlyRulesSupport: d.opts.MigrationReadOnlyRulesSupport}
}

// UpdateAccess replaces the enforced set of the instance with existing plus
// addRules, minus deleteRules.
func (d *Driver) UpdateAccess(ctx context.Context, instance *api.ShareInstance, existing, addRules, deleteRules []api.AccessRule, server *api.ShareServer) (api.UpdateResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls[OpUpdate]++
	if err := d.failures[OpUpdate]; err != nil {
		return api.UpdateResult{}, err
	}

	rules := make(map[string]api.AccessRule, len(existing)+len(addRules))
	for _, r := range existing {
		rules[r.ID] = r
	}
	for _, r := range addRules {
		rules[r.ID] = r
	}
	for _, r := range deleteRules {
		delete(rules, r.ID)
	}
	d.enforced[instance.ID] = rules

	logging.Debug("MemoryDriver", "Enforcing %d rules on %s (added %d, deleted %d)",
		len(rules), instance.ID, len(addRules), len(deleteRules))

	if !d.opts.IssueAccessKeys || len(rules) == 0 {
		return api.UpdateResult{}, nil
	}

	keys := make(map[string]string, len(rules))
	for id, r := range rules {
		keys[id] = d.keyFor(r)
	}
	return api.UpdateResult{AccessKeys: keys}, nil
}

// keyFor returns the key already issued for the rule, or a new one.
func (d *Driver) keyFor(r api.AccessRule) string {
	if key, ok := d.keys[r.ID]; ok {
		return key
	}
	key := r.AccessKey
	if key == "" {
		key = uuid.NewString()
	}
	d.keys[r.ID] = key
	return key
}

func (d *Driver) AllowAccess(ctx context.Context, instance *api.ShareInstance, rule api.AccessRule, server *api.ShareServer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls[OpAllow]++
	if err := d.failures[OpAllow]; err != nil {
		return err
	}

	rules, ok := d.enforced[instance.ID]
	if !ok {
		rules = make(map[string]api.AccessRule)
		d.enforced[instance.ID] = rules
	}
	rules[rule.ID] = rule
	return nil
}

func (d *Driver) DenyAccess(ctx context.Context, instance *api.ShareInstance, rule api.AccessRule, server *api.ShareServer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls[OpDeny]++
	if err := d.failures[OpDeny]; err != nil {
		return err
	}

	if _, ok := d.enforced[instance.ID][rule.ID]; !ok {
		return api.NewAccessRuleNotFoundError(rule.ID)
	}
	delete(d.enforced[instance.ID], rule.ID)
	return nil
}

// SetFailure makes every later call of op fail with err. A nil err clears
// the failure.
func (d *Driver) SetFailure(op Operation, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Calls returns how often op was invoked.
func (d *Driver) Calls(op Operation) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Enforced returns the rules currently enforced for the instance, ordered
// by id.
func (d *Driver) Enforced(instanceID string) []api.AccessRule {
	d.mu.Lock()
	defer d.mu.Unlock()

	rules := make([]api.AccessRule, 0, len(d.enforced[instanceID]))
	for _, r := range d.enforced[instanceID] {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}
