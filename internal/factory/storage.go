// Package factory assembles driver-specific infrastructure from config.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/halcyon-social/halcyon/appview/internal/config"
	storepkg "github.com/halcyon-social/halcyon/appview/internal/store"
	storepg "github.com/halcyon-social/halcyon/appview/internal/store/postgres"
	storelite "github.com/halcyon-social/halcyon/appview/internal/store/sqlite"
)

// NewStore returns the store.Store selected by cfg.DBDriver: pgx-backed
// Postgres for cloud targets, embedded SQLite for local ones.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("APPVIEW_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		pool, err := storepg.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", "postgres").Msg("store ready")
		return storepg.NewWithPool(pool), nil

	case "sqlite":
		db, err := storelite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := storelite.EnsureSchema(db); err != nil {
			return nil, err
		}
		log.Info().Str("driver", "sqlite").Str("path", cfg.SQLitePath).Msg("store ready")
		return storelite.New(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
