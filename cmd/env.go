package cmd

import (
	"context"
	"fmt"

	"github.com/giantswarm/sharekeeper/internal/access"
	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/internal/config"
	"github.com/giantswarm/sharekeeper/internal/driver"
	"github.com/giantswarm/sharekeeper/internal/reconciler"
	"github.com/giantswarm/sharekeeper/internal/store"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// environment bundles the components a command works with.
type environment struct {
	config     config.Config
	store      api.Store
	driver     api.Driver
	engine     *access.Engine
	reconciler *reconciler.AccessReconciler
}

// openEnvironment opens the configured store and driver and wires the
// access engine and reconciler on top. Callers must Close it.
func openEnvironment(ctx context.Context, cfg config.Config) (*environment, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	drv, err := driver.New(cfg.Driver)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine := access.NewEngine(st, drv,
		access.WithMaxPasses(cfg.Reconciler.MaxConvergencePasses),
		access.WithObserver(reconciler.GetReconcilerMetrics()),
	)

	logging.Debug("CLI", "Using %s store and %s driver", cfg.Store.Backend, drv.Name())

	return &environment{
		config:     cfg,
		store:      st,
		driver:     drv,
		engine:     engine,
		reconciler: reconciler.NewAccessReconciler(st, engine, cfg.Reconciler.ManifestPath, cfg.Reconciler.PruneOnDelete),
	}, nil
}

func (e *environment) Close() {
	if err := e.store.Close(); err != nil {
		logging.Error("CLI", err, "Failed to close store")
	}
}
