package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		repo, err := open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		return repo, nil
	})
}

func open(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.StoreDriverPostgres:
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return NewPostgresRepository(p), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
