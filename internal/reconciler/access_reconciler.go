package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/internal/manifest"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// AccessEngine is the part of access.Engine the reconciler drives.
type AccessEngine interface {
	UpdateAccessRules(ctx context.Context, instanceID string, addRules, deleteRules []api.AccessRule) error
	DenyAllAccess(ctx context.Context, instanceID string) error
}

// ShareStore is the store surface the reconciler needs.
type ShareStore interface {
	GetShareInstance(ctx context.Context, instanceID string) (*api.ShareInstance, error)
	ListShareInstances(ctx context.Context) ([]api.ShareInstance, error)
	ListAccessRules(ctx context.Context, instanceID string) ([]api.AccessRule, error)
	CreateAccessRule(ctx context.Context, rule api.AccessRule) error
}

// AccessReconciler reconciles share instances against their manifests.
//
// With a manifest present the stored rules are brought in line with it and
// the difference is handed to the engine as add and delete batches. Without
// one the instance is resynced with empty batches, unless the manifest was
// just removed and pruning is enabled, in which case all access is denied.
type AccessReconciler struct {
	store         ShareStore
	engine        AccessEngine
	manifestRoot  string
	pruneOnDelete bool

	group singleflight.Group
	now   func() time.Time
}

var (
	_ Reconciler   = (*AccessReconciler)(nil)
	_ ResyncSource = (*AccessReconciler)(nil)
)

// NewAccessReconciler creates a reconciler for ResourceTypeShareAccess.
// An empty manifestRoot disables manifest handling.
func NewAccessReconciler(store ShareStore, engine AccessEngine, manifestRoot string, pruneOnDelete bool) *AccessReconciler {
	return &AccessReconciler{
		store:         store,
		engine:        engine,
		manifestRoot:  manifestRoot,
		pruneOnDelete: pruneOnDelete,
		now:           time.Now,
	}
}

func (r *AccessReconciler) GetResourceType() ResourceType {
	return ResourceTypeShareAccess
}

func (r *AccessReconciler) Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult {
	if err := r.sync(ctx, req.Name, req.Source); err != nil {
		return ReconcileResult{Error: err, Requeue: true}
	}
	return ReconcileResult{}
}

// Sync reconciles a single instance immediately. Concurrent calls for the
// same instance share one run.
func (r *AccessReconciler) Sync(ctx context.Context, instanceID string) error {
	return r.sync(ctx, instanceID, SourceManual)
}

func (r *AccessReconciler) sync(ctx context.Context, instanceID string, source ChangeSource) error {
	_, err, shared := r.group.Do(instanceID, func() (any, error) {
		return nil, r.reconcileInstance(ctx, instanceID, source)
	})
	if shared {
		logging.Debug("AccessReconciler", "Joined in-flight reconcile of %s", instanceID)
	}
	return err
}

func (r *AccessReconciler) reconcileInstance(ctx context.Context, instanceID string, source ChangeSource) error {
	if _, err := r.store.GetShareInstance(ctx, instanceID); err != nil {
		if api.IsNotFound(err) && source == SourceFilesystem {
			logging.Warn("AccessReconciler", "Ignoring manifest for unknown share instance %s", instanceID)
			return nil
		}
		return err
	}

	if r.manifestRoot == "" {
		return r.engine.UpdateAccessRules(ctx, instanceID, nil, nil)
	}

	m, err := manifest.Load(r.manifestRoot, instanceID)
	switch {
	case api.IsNotFound(err):
		if source == SourceFilesystem && r.pruneOnDelete {
			logging.Info("AccessReconciler", "Manifest for %s removed, denying all access", instanceID)
			return r.engine.DenyAllAccess(ctx, instanceID)
		}
		return r.engine.UpdateAccessRules(ctx, instanceID, nil, nil)
	case err != nil:
		return err
	}

	return r.applyManifest(ctx, m)
}

// applyManifest persists the rules the manifest adds and runs the engine
// with them and the stored rules it no longer lists.
func (r *AccessReconciler) applyManifest(ctx context.Context, m *manifest.Manifest) error {
	stored, err := r.store.ListAccessRules(ctx, m.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to list access rules: %w", err)
	}

	create, remove := manifest.Diff(m.Rules, stored)

	added := make([]api.AccessRule, 0, len(create))
	for _, rule := range create {
		ar := api.AccessRule{
			ID:          uuid.NewString(),
			InstanceID:  m.InstanceID,
			AccessTo:    rule.AccessTo,
			AccessLevel: rule.AccessLevel,
			CreatedAt:   r.now().UTC(),
		}
		if err := r.store.CreateAccessRule(ctx, ar); err != nil {
			return fmt.Errorf("failed to record access rule for %s: %w", rule.AccessTo, err)
		}
		added = append(added, ar)
	}

	if len(added) > 0 || len(remove) > 0 {
		logging.Info("AccessReconciler", "Applying manifest for %s: %d to add, %d to remove",
			m.InstanceID, len(added), len(remove))
	}
	return r.engine.UpdateAccessRules(ctx, m.InstanceID, added, remove)
}

// PendingResync returns the instances whose access rules are in error or
// out of sync.
func (r *AccessReconciler) PendingResync(ctx context.Context) ([]string, error) {
	instances, err := r.store.ListShareInstances(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, inst := range instances {
		switch inst.AccessRulesStatus {
		case api.AccessRulesError, api.AccessRulesOutOfSync:
			ids = append(ids, inst.ID)
		}
	}
	return ids, nil
}
