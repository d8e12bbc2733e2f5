package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/internal/manifest"
	"github.com/giantswarm/sharekeeper/internal/store/memory"
)

// =============================================================================
// mockEngine - records the batches handed to the access engine
// =============================================================================

type engineCall struct {
	InstanceID string
	DenyAll    bool
	Add        []api.AccessRule
	Delete     []api.AccessRule
}

type mockEngine struct {
	mu    sync.Mutex
	calls []engineCall

	// err is returned by every call when set.
	err error

	// entered receives a value when UpdateAccessRules starts, if set.
	entered chan struct{}

	// block, when set, is waited on inside every call.
	block chan struct{}
}

func (e *mockEngine) UpdateAccessRules(ctx context.Context, instanceID string, addRules, deleteRules []api.AccessRule) error {
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{InstanceID: instanceID, Add: addRules, Delete: deleteRules})
	return e.err
}

func (e *mockEngine) DenyAllAccess(ctx context.Context, instanceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{InstanceID: instanceID, DenyAll: true})
	return e.err
}

func (e *mockEngine) Calls() []engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engineCall(nil), e.calls...)
}

// =============================================================================
// Fixtures
// =============================================================================

// newTestStore returns a memory store holding the given instances, all with
// active access rules.
func newTestStore(t *testing.T, instanceIDs ...string) *memory.Store {
	t.Helper()
	s := memory.New()
	for _, id := range instanceIDs {
		if err := s.CreateShareInstance(context.Background(), api.ShareInstance{ID: id}); err != nil {
			t.Fatalf("failed to create instance %s: %v", id, err)
		}
	}
	return s
}

// addStoredRule persists a rule and returns it.
func addStoredRule(t *testing.T, s *memory.Store, instanceID, id, accessTo string, level api.AccessLevel) api.AccessRule {
	t.Helper()
	rule := api.AccessRule{ID: id, InstanceID: instanceID, AccessTo: accessTo, AccessLevel: level}
	if err := s.CreateAccessRule(context.Background(), rule); err != nil {
		t.Fatalf("failed to create rule %s: %v", id, err)
	}
	return rule
}

// writeManifest writes a manifest for instanceID below root.
func writeManifest(t *testing.T, root, instanceID, content string) {
	t.Helper()
	path := manifest.Path(root, instanceID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create manifest dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}
