// Package reconciler keeps the access rules of share instances converged
// with their manifests.
//
// # Architecture
//
// The reconciliation system consists of:
//
//   - Manager: owns the work queue, the worker pool and retry backoff, and
//     tracks a ReconcileStatus per resource
//   - Reconciler: resource-specific logic; AccessReconciler is the one
//     implementation and drives the access engine
//   - ChangeDetector: FilesystemDetector watches <root>/shares with fsnotify
//     and emits one debounced event per manifest
//   - ResyncSource: polled every ResyncInterval; AccessReconciler reports the
//     instances whose access rules are in error or out of sync
//
// Requests for the same instance are deduplicated in the queue and never run
// on two workers at once. Failed requests are retried with exponential
// backoff up to MaxRetries; invalid manifests fail immediately.
//
// # Usage
//
//	manager := reconciler.NewManager(reconciler.ManagerConfig{
//	    FilesystemPath: manifestRoot,
//	    ResyncInterval: 5 * time.Minute,
//	})
//	ar := reconciler.NewAccessReconciler(store, engine, manifestRoot, false)
//	if err := manager.RegisterReconciler(ar); err != nil {
//	    return err
//	}
//	manager.RegisterResyncSource(ar)
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer manager.Stop()
package reconciler
