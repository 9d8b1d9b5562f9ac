package portal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alagappainfotech/student-registration-app/internal/config"
	"github.com/alagappainfotech/student-registration-app/internal/db"
	"github.com/alagappainfotech/student-registration-app/internal/kv"

	"github.com/uptrace/bun"
)

// openStore opens the credential store backend named by cfg.Store.Backend.
// The database handle is returned for the sql backend so it can be closed
// on shutdown.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, *bun.DB, error) {
	switch cfg.Store.Backend {
	case "memory":
		return kv.NewMemory(), nil, nil

	case "file":
		store, err := kv.OpenFile(cfg.Store.FilePath, cfg.Store.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "credential store opened", "backend", "file", "path", cfg.Store.FilePath, "sealed", cfg.Store.Passphrase != "")
		return store, nil, nil

	case "redis":
		store, err := kv.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix+cfg.Store.Profile+":")
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "credential store opened", "backend", "redis", "addr", cfg.Redis.Addr)
		return store, nil, nil

	case "sql":
		database, err := db.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx, database, (*kv.CredentialEntry)(nil)); err != nil {
			db.Close(database)
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.InfoContext(ctx, "credential store opened", "backend", "sql", "profile", cfg.Store.Profile)
		return kv.NewSQL(database, cfg.Store.Profile), database, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
