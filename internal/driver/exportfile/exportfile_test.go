package exportfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sharekeeper/internal/api"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "exports", "exports.yaml"), api.DriverConfig{})
}

func TestUpdateAccess_NotSupported(t *testing.T) {
	d := newTestDriver(t)
	res, err := d.UpdateAccess(context.Background(), &api.ShareInstance{ID: "inst-1"}, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.NotSupported)
}

func TestAllowDeny(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	inst := &api.ShareInstance{ID: "inst-1"}
	other := &api.ShareInstance{ID: "inst-2"}
	server := &api.ShareServer{ID: "srv-1", Host: "filer-a"}

	require.NoError(t, d.AllowAccess(ctx, inst, api.AccessRule{ID: "r1", AccessTo: "10.0.0.2", AccessLevel: api.AccessLevelRW}, server))
	require.NoError(t, d.AllowAccess(ctx, inst, api.AccessRule{ID: "r2", AccessTo: "10.0.0.1", AccessLevel: api.AccessLevelRO}, nil))
	require.NoError(t, d.AllowAccess(ctx, other, api.AccessRule{ID: "r3", AccessTo: "10.0.0.1", AccessLevel: api.AccessLevelRW}, nil))

	exports, err := d.Exports("inst-1")
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, "10.0.0.1", exports[0].AccessTo)
	assert.Equal(t, "filer-a", exports[1].Server)

	// Allowing the same rule again rewrites its entry.
	require.NoError(t, d.AllowAccess(ctx, inst, api.AccessRule{ID: "r2", AccessTo: "10.0.0.1", AccessLevel: api.AccessLevelRW}, nil))
	exports, err = d.Exports("inst-1")
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, "r2", exports[0].RuleID)
	assert.Equal(t, api.AccessLevelRW, exports[0].AccessLevel)

	require.NoError(t, d.DenyAccess(ctx, inst, api.AccessRule{ID: "r2", AccessTo: "10.0.0.1"}, nil))
	exports, err = d.Exports("inst-1")
	require.NoError(t, err)
	assert.Len(t, exports, 1)

	err = d.DenyAccess(ctx, inst, api.AccessRule{ID: "r2", AccessTo: "10.0.0.1"}, nil)
	assert.True(t, api.IsNotFound(err))

	exports, err = d.Exports("inst-2")
	require.NoError(t, err)
	assert.Len(t, exports, 1)
}

func TestAllowDeny_LevelChange(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	inst := &api.ShareInstance{ID: "inst-1"}
	rw := api.AccessRule{ID: "r1", AccessTo: "host-a", AccessLevel: api.AccessLevelRW}
	ro := api.AccessRule{ID: "r2", AccessTo: "host-a", AccessLevel: api.AccessLevelRO}

	require.NoError(t, d.AllowAccess(ctx, inst, rw, nil))
	require.NoError(t, d.AllowAccess(ctx, inst, ro, nil))

	exports, err := d.Exports("inst-1")
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, []string{"r1", "r2"}, []string{exports[0].RuleID, exports[1].RuleID})

	require.NoError(t, d.DenyAccess(ctx, inst, rw, nil))

	exports, err = d.Exports("inst-1")
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, "r2", exports[0].RuleID)
	assert.Equal(t, api.AccessLevelRO, exports[0].AccessLevel)
}

func TestExports_PersistedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "exports.yaml")

	require.NoError(t, New(path, api.DriverConfig{}).AllowAccess(ctx, &api.ShareInstance{ID: "inst-1"},
		api.AccessRule{ID: "r1", AccessTo: "host-a", AccessLevel: api.AccessLevelRO}, nil))

	exports, err := New(path, api.DriverConfig{}).Exports("inst-1")
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, "host-a", exports[0].AccessTo)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "accessTo: host-a")
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exports: {"), 0644))

	_, err := New(path, api.DriverConfig{}).Exports("inst-1")
	assert.Error(t, err)
}
