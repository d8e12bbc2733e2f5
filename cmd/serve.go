package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/sharekeeper/internal/config"
	"github.com/giantswarm/sharekeeper/internal/manifest"
	"github.com/giantswarm/sharekeeper/internal/reconciler"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// metricsLogInterval is how often serve logs a reconcile summary.
const metricsLogInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch manifests and keep access rules reconciled",
		Long: `Run the reconcile manager until interrupted.

On start every manifest under <manifestPath>/shares is applied. Afterwards
manifest changes are picked up as they happen, and instances whose
access-rules status is error or out_of_sync are resynced every
resyncInterval. Failed reconciles are retried with exponential backoff.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

// newManagerConfig maps the reconciler configuration onto the manager.
func newManagerConfig(cfg config.ReconcilerConfig) reconciler.ManagerConfig {
	return reconciler.ManagerConfig{
		FilesystemPath:   cfg.ManifestPath,
		WorkerCount:      cfg.Workers,
		MaxRetries:       cfg.MaxRetries,
		InitialBackoff:   cfg.InitialBackoff,
		MaxBackoff:       cfg.MaxBackoff,
		DebounceInterval: cfg.DebounceInterval,
		ReconcileTimeout: cfg.ReconcileTimeout,
		ResyncInterval:   cfg.ResyncInterval,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openEnvironment(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	if loadedConfig.Store.Backend == config.StoreBackendMemory {
		logging.Warn("Serve", "Using the memory store; recorded rules are lost on exit")
	}
	if loadedConfig.Reconciler.ManifestPath == "" && loadedConfig.Reconciler.ResyncInterval <= 0 {
		logging.Warn("Serve", "Neither manifestPath nor resyncInterval is configured; nothing will be reconciled")
	}

	manager := reconciler.NewManager(newManagerConfig(loadedConfig.Reconciler))
	if err := manager.RegisterReconciler(env.reconciler); err != nil {
		return err
	}
	manager.RegisterResyncSource(env.reconciler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := manager.Start(gctx); err != nil {
			return fmt.Errorf("failed to start reconcile manager: %w", err)
		}
		if err := enqueueManifests(manager, loadedConfig.Reconciler.ManifestPath); err != nil {
			logging.Error("Serve", err, "Initial manifest scan failed")
		}

		<-gctx.Done()
		return manager.Stop()
	})

	g.Go(func() error {
		wait.UntilWithContext(gctx, logMetricsSummary, metricsLogInterval)
		return nil
	})

	logging.Info("Serve", "sharekeeper %s serving with the %s driver", GetVersion(), env.driver.Name())
	fmt.Fprintln(cmd.OutOrStdout(), "sharekeeper is running. Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil {
		return err
	}
	logMetricsSummary(context.Background())
	return nil
}

// enqueueManifests queues every instance that has a manifest.
func enqueueManifests(manager *reconciler.Manager, root string) error {
	if root == "" {
		return nil
	}
	ids, err := manifest.List(root)
	if err != nil {
		return err
	}
	for _, id := range ids {
		manager.TriggerReconcile(reconciler.ResourceTypeShareAccess, id)
	}
	logging.Info("Serve", "Queued %d manifests from %s", len(ids), root)
	return nil
}

func logMetricsSummary(context.Context) {
	s := reconciler.GetReconcilerMetrics().Summary()
	if s.TotalReconcileAttempts == 0 && s.TotalEnginePasses == 0 {
		return
	}
	logging.Info("Serve", "Reconciles: %d attempted, %d succeeded, %d failed; engine passes: %d (%d failed); convergence errors: %d",
		s.TotalReconcileAttempts, s.TotalReconcileSuccesses, s.TotalReconcileFailures,
		s.TotalEnginePasses, s.TotalPassFailures, s.TotalConvergenceErrors)
}
