// Package store opens the api.Store backend selected by configuration.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/internal/config"
	"github.com/giantswarm/sharekeeper/internal/store/memory"
	"github.com/giantswarm/sharekeeper/internal/store/postgres"
	"github.com/giantswarm/sharekeeper/internal/store/sqlite"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// Open returns the configured store. The caller owns it and must Close it.
func Open(ctx context.Context, cfg config.StoreConfig) (api.Store, error) {
	logging.Debug("Store", "Opening %s store", cfg.Backend)

	switch cfg.Backend {
	case config.StoreBackendMemory:
		return memory.New(), nil

	case config.StoreBackendSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.StoreBackendPostgres:
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
