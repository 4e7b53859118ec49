package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/store/postgres"
	"github.com/JonMunkholm/txnimport/internal/store/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
)

// cliStore is everything the commands need from a database.
type cliStore interface {
	core.Store
	core.TenantSettings
	core.ImportRecorder
	core.Directory
	Migrate(ctx context.Context) error
	Close() error
}

// pgStore adapts the postgres store to cliStore.
type pgStore struct {
	*postgres.Store
	pool *pgxpool.Pool
	url  string
}

func (p *pgStore) Migrate(context.Context) error {
	return postgres.Migrate(p.url)
}

func (p *pgStore) Close() error {
	p.pool.Close()
	return nil
}

// openStore opens the configured database and brings its schema up to date.
func (a *app) openStore(ctx context.Context) (cliStore, error) {
	driver := a.v.GetString("database.driver")
	dsn := a.v.GetString("database.dsn")

	var (
		store cliStore
		err   error
	)
	switch driver {
	case "sqlite", "":
		if dsn == "" {
			if dsn, err = defaultDBPath(); err != nil {
				return nil, err
			}
		}
		var s *sqlite.Store
		if s, err = sqlite.Open(dsn); err != nil {
			return nil, err
		}
		slog.Debug("opened sqlite database", "path", s.Path())
		store = s

	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("--db is required for the postgres driver")
		}
		pool, err := postgres.Connect(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 4})
		if err != nil {
			return nil, err
		}
		store = &pgStore{Store: postgres.New(pool), pool: pool, url: dsn}

	default:
		return nil, fmt.Errorf("unknown database driver %q (want sqlite or postgres)", driver)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return store, nil
}

func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "txnimport", "txnimport.db"), nil
}
