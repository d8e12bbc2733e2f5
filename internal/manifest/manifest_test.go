package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sharekeeper/internal/api"
)

func writeManifest(t *testing.T, root, instanceID, content string) {
	t.Helper()
	path := Path(root, instanceID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "inst-1", `
rules:
  - accessTo: 10.0.0.0/24
    accessLevel: ro
  - accessTo: " backup.example.com "
`)

	m, err := Load(root, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", m.InstanceID)
	assert.Equal(t, []Rule{
		{AccessTo: "10.0.0.0/24", AccessLevel: api.AccessLevelRO},
		{AccessTo: "backup.example.com", AccessLevel: api.AccessLevelRW},
	}, m.Rules)

	_, err = Load(root, "missing")
	assert.True(t, api.IsNotFound(err))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantRules int
		wantErr   bool
	}{
		{name: "empty document", yaml: "", wantRules: 0},
		{name: "no rules", yaml: "rules: []", wantRules: 0},
		{name: "same principal at two levels", yaml: "rules: [{accessTo: a, accessLevel: rw}, {accessTo: a, accessLevel: ro}]", wantRules: 2},
		{name: "missing accessTo", yaml: "rules: [{accessLevel: rw}]", wantErr: true},
		{name: "bad level", yaml: "rules: [{accessTo: a, accessLevel: rx}]", wantErr: true},
		{name: "duplicate", yaml: "rules: [{accessTo: a}, {accessTo: a, accessLevel: rw}]", wantErr: true},
		{name: "unknown field", yaml: "rules: [{accessTo: a, level: rw}]", wantErr: true},
		{name: "malformed", yaml: "rules: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, m.Rules, tt.wantRules)
		})
	}
}

func TestInstanceID(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{path: "/m/shares/inst-1.yaml", want: "inst-1", wantOK: true},
		{path: "/m/shares/inst-2.YML", want: "inst-2", wantOK: true},
		{path: "/m/shares/inst-1.json", wantOK: false},
		{path: "/m/other/inst-1.yaml", wantOK: false},
		{path: "/m/shares/.hidden.yaml", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := InstanceID(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()

	ids, err := List(root)
	require.NoError(t, err)
	assert.Empty(t, ids)

	writeManifest(t, root, "b", "rules: []")
	writeManifest(t, root, "a", "rules: []")
	require.NoError(t, os.WriteFile(filepath.Join(root, SharesDir, "notes.txt"), []byte("x"), 0644))

	ids, err = List(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestDiff(t *testing.T) {
	stored := []api.AccessRule{
		{ID: "1", AccessTo: "a", AccessLevel: api.AccessLevelRW},
		{ID: "2", AccessTo: "b", AccessLevel: api.AccessLevelRW},
		{ID: "3", AccessTo: "a", AccessLevel: api.AccessLevelRW},
		{ID: "4", AccessTo: "c", AccessLevel: api.AccessLevelRO},
	}
	desired := []Rule{
		{AccessTo: "a", AccessLevel: api.AccessLevelRW},
		{AccessTo: "c", AccessLevel: api.AccessLevelRW},
		{AccessTo: "d", AccessLevel: api.AccessLevelRO},
	}

	create, remove := Diff(desired, stored)

	assert.Equal(t, []Rule{
		{AccessTo: "c", AccessLevel: api.AccessLevelRW},
		{AccessTo: "d", AccessLevel: api.AccessLevelRO},
	}, create)
	assert.Equal(t, []string{"2", "3", "4"}, api.RuleIDs(remove))

	create, remove = Diff(nil, nil)
	assert.Empty(t, create)
	assert.Empty(t, remove)
}
