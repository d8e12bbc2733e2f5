package access

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/internal/store/memory"
)

// =============================================================================
// MockStore - memory store with call recording and hooks
// =============================================================================

// MockStore wraps the memory store and records the writes the engine makes.
type MockStore struct {
	*memory.Store

	mu sync.Mutex

	// OnList runs before every ListAccessRules call with the 1-based call
	// number. Tests use it to change the stored rules mid-pass.
	OnList func(call int)

	// GetInstanceError makes GetShareInstance fail.
	GetInstanceError error

	listCalls    int
	StatusWrites []api.AccessRulesStatus
	Removed      [][]string
}

// NewMockStore creates a store holding instance "inst-1" with the given
// statuses.
func NewMockStore(t *testing.T, status api.InstanceStatus, rulesStatus api.AccessRulesStatus) *MockStore {
	t.Helper()
	s := &MockStore{Store: memory.New()}
	require.NoError(t, s.Store.CreateShareInstance(context.Background(), api.ShareInstance{
		ID:                "inst-1",
		Status:            status,
		AccessRulesStatus: rulesStatus,
	}))
	return s
}

// AddRules persists rules on inst-1 and returns them in the given order.
func (m *MockStore) AddRules(t *testing.T, ids ...string) []api.AccessRule {
	t.Helper()
	rules := make([]api.AccessRule, 0, len(ids))
	for _, id := range ids {
		r := testRule(id)
		require.NoError(t, m.Store.CreateAccessRule(context.Background(), r))
		rules = append(rules, r)
	}
	return rules
}

func (m *MockStore) GetShareInstance(ctx context.Context, instanceID string) (*api.ShareInstance, error) {
	if m.GetInstanceError != nil {
		return nil, m.GetInstanceError
	}
	return m.Store.GetShareInstance(ctx, instanceID)
}

func (m *MockStore) ListAccessRules(ctx context.Context, instanceID string) ([]api.AccessRule, error) {
	m.mu.Lock()
	m.listCalls++
	call := m.listCalls
	hook := m.OnList
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return m.Store.ListAccessRules(ctx, instanceID)
}

func (m *MockStore) SetAccessRulesStatus(ctx context.Context, instanceID string, status api.AccessRulesStatus) error {
	m.mu.Lock()
	m.StatusWrites = append(m.StatusWrites, status)
	m.mu.Unlock()
	return m.Store.SetAccessRulesStatus(ctx, instanceID, status)
}

func (m *MockStore) RemoveAccessRules(ctx context.Context, instanceID string, rules []api.AccessRule) error {
	m.mu.Lock()
	m.Removed = append(m.Removed, api.RuleIDs(rules))
	m.mu.Unlock()
	return m.Store.RemoveAccessRules(ctx, instanceID, rules)
}

// RulesStatus returns the stored access-rules status of inst-1.
func (m *MockStore) RulesStatus(t *testing.T) api.AccessRulesStatus {
	t.Helper()
	inst, err := m.Store.GetShareInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	return inst.AccessRulesStatus
}

// StoredIDs returns the ids of the rules stored for inst-1.
func (m *MockStore) StoredIDs(t *testing.T) []string {
	t.Helper()
	rules, err := m.Store.ListAccessRules(context.Background(), "inst-1")
	require.NoError(t, err)
	return api.RuleIDs(rules)
}

// =============================================================================
// MockDriver - recording driver with configurable results
// =============================================================================

// UpdateCall captures the arguments of one UpdateAccess call.
type UpdateCall struct {
	Existing []string
	Add      []string
	Delete   []string
	Server   *api.ShareServer
}

// MockDriver implements api.Driver for testing.
type MockDriver struct {
	mu sync.Mutex

	Config api.DriverConfig

	// BulkUnsupported makes UpdateAccess answer NotSupported.
	BulkUnsupported bool

	// AccessKeys is returned as the access-key payload of UpdateAccess.
	AccessKeys any

	// OnUpdate runs inside every UpdateAccess call, after the payload for
	// that call has been taken, with the 1-based call number. It runs with
	// the driver locked.
	OnUpdate func(call int)

	// Configurable errors for testing error paths
	UpdateError error
	AllowErrors map[string]error
	DenyErrors  map[string]error

	UpdateCalls []UpdateCall
	Allowed     []string
	Denied      []string
}

func (d *MockDriver) Name() string { return "mock" }

func (d *MockDriver) Configuration() api.DriverConfig { return d.Config }

func (d *MockDriver) UpdateAccess(ctx context.Context, instance *api.ShareInstance, existing, addRules, deleteRules []api.AccessRule, server *api.ShareServer) (api.UpdateResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.UpdateCalls = append(d.UpdateCalls, UpdateCall{
		Existing: api.RuleIDs(existing),
		Add:      api.RuleIDs(addRules),
		Delete:   api.RuleIDs(deleteRules),
		Server:   server,
	})
	payload := d.AccessKeys
	if d.OnUpdate != nil {
		d.OnUpdate(len(d.UpdateCalls))
	}
	if d.UpdateError != nil {
		return api.UpdateResult{}, d.UpdateError
	}
	if d.BulkUnsupported {
		return api.NotSupported(), nil
	}
	return api.UpdateResult{AccessKeys: payload}, nil
}

func (d *MockDriver) AllowAccess(ctx context.Context, instance *api.ShareInstance, rule api.AccessRule, server *api.ShareServer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Allowed = append(d.Allowed, rule.ID)
	return d.AllowErrors[rule.ID]
}

func (d *MockDriver) DenyAccess(ctx context.Context, instance *api.ShareInstance, rule api.AccessRule, server *api.ShareServer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Denied = append(d.Denied, rule.ID)
	return d.DenyErrors[rule.ID]
}

// =============================================================================
// MockObserver - records pass outcomes
// =============================================================================

type observedPass struct {
	Pass int
	Err  error
}

type MockObserver struct {
	mu     sync.Mutex
	Passes []observedPass
}

func (o *MockObserver) PassCompleted(instanceID string, pass int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Passes = append(o.Passes, observedPass{Pass: pass, Err: err})
}

func testRule(id string) api.AccessRule {
	return api.AccessRule{
		ID:          id,
		InstanceID:  "inst-1",
		AccessTo:    "10.0.0." + id,
		AccessLevel: api.AccessLevelRW,
	}
}
