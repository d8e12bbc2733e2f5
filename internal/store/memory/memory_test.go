package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sharekeeper/internal/api"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.CreateShareInstance(context.Background(), api.ShareInstance{ID: "inst-1"}))
	return s
}

func TestCreateShareInstance_Defaults(t *testing.T) {
	s := newTestStore(t)

	inst, err := s.GetShareInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, api.StatusAvailable, inst.Status)
	assert.Equal(t, api.AccessRulesActive, inst.AccessRulesStatus)
	assert.False(t, inst.CreatedAt.IsZero())
}

func TestCreateShareInstance_Duplicate(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateShareInstance(context.Background(), api.ShareInstance{ID: "inst-1"})
	assert.Error(t, err)
}

func TestGetShareInstance_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetShareInstance(context.Background(), "missing")
	assert.True(t, api.IsNotFound(err))
}

func TestAccessRules_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateAccessRule(ctx, api.AccessRule{ID: "b", InstanceID: "inst-1", AccessTo: "10.0.0.2", AccessLevel: api.AccessLevelRO, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.CreateAccessRule(ctx, api.AccessRule{ID: "a", InstanceID: "inst-1", AccessTo: "10.0.0.1", AccessLevel: api.AccessLevelRW, CreatedAt: base}))

	rules, err := s.ListAccessRules(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, api.RuleIDs(rules))

	require.NoError(t, s.SetAccessKey(ctx, "a", "secret"))
	rule, err := s.GetAccessRule(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "secret", rule.AccessKey)

	require.NoError(t, s.RemoveAccessRules(ctx, "inst-1", []api.AccessRule{{ID: "a"}, {ID: "never-existed"}}))
	rules, err = s.ListAccessRules(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, api.RuleIDs(rules))
}

func TestCreateAccessRule_UnknownInstance(t *testing.T) {
	s := New()
	err := s.CreateAccessRule(context.Background(), api.AccessRule{ID: "a", InstanceID: "nope"})
	assert.True(t, api.IsNotFound(err))
}

func TestRemoveAccessRules_OtherInstanceUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateShareInstance(ctx, api.ShareInstance{ID: "inst-2"}))
	require.NoError(t, s.CreateAccessRule(ctx, api.AccessRule{ID: "a", InstanceID: "inst-2"}))

	require.NoError(t, s.RemoveAccessRules(ctx, "inst-1", []api.AccessRule{{ID: "a"}}))

	_, err := s.GetAccessRule(ctx, "a")
	assert.NoError(t, err)
}

func TestStatusUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetAccessRulesStatus(ctx, "inst-1", api.AccessRulesError))
	require.NoError(t, s.SetShareInstanceStatus(ctx, "inst-1", api.StatusMigrating))

	inst, err := s.GetShareInstance(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, api.AccessRulesError, inst.AccessRulesStatus)
	assert.True(t, inst.IsMigrating())

	assert.True(t, api.IsNotFound(s.SetAccessRulesStatus(ctx, "missing", api.AccessRulesActive)))
}

func TestShareServer_CopiedOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateShareServer(ctx, api.ShareServer{ID: "srv", Details: map[string]string{"vlan": "10"}}))

	srv, err := s.GetShareServer(ctx, "srv")
	require.NoError(t, err)
	srv.Details["vlan"] = "20"

	again, err := s.GetShareServer(ctx, "srv")
	require.NoError(t, err)
	assert.Equal(t, "10", again.Details["vlan"])
}

func TestClose(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.ListAccessRules(context.Background(), "inst-1")
	assert.ErrorIs(t, err, api.ErrStoreClosed)
}
