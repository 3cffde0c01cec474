// Package cli implements the travellife command-line interface: an operator
// surface over the sync engine for inspecting status, draining the queue,
// resolving conflicts and managing local storage.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/travellife/internal/cachestore"
	"github.com/dmitrijs2005/travellife/internal/config"
	"github.com/dmitrijs2005/travellife/internal/logging"
	"github.com/dmitrijs2005/travellife/internal/migrations"
	"github.com/dmitrijs2005/travellife/internal/serverapi"
	"github.com/dmitrijs2005/travellife/internal/storage"
	"github.com/dmitrijs2005/travellife/internal/syncengine"
	"github.com/dmitrijs2005/travellife/internal/tiles"

	_ "modernc.org/sqlite"
)

// app wires the engine and its collaborators from resolved configuration.
// It is built once per invocation in the root command's pre-run.
type app struct {
	cfg *config.Config
	log logging.Logger

	db      *sql.DB
	api     serverapi.Client
	engine  *syncengine.Engine
	store   *storage.Manager
	cache   *cachestore.Store
	tileSvc *tiles.Service
}

func newApp(cfgPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	db, err := openDatabase(filepath.Join(cfg.DataDir, storage.DatabaseFile))
	if err != nil {
		return nil, err
	}

	api := serverapi.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout)
	engine := syncengine.New(db, api, log, syncengine.Config{
		MaxRetries:  cfg.Sync.MaxRetries,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffCap:  cfg.Sync.BackoffCap,
		Parallelism: cfg.Sync.Parallelism,
	})

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		api:    api,
		engine: engine,
		store:  storage.New(cfg.DataDir, cfg.QuotaBytes, 0, log),
		cache:  cachestore.New(cfg.DataDir, log),
		tileSvc: tiles.New(tiles.Config{
			URLTemplate:     cfg.Tiles.URLTemplate,
			CacheDir:        filepath.Join(cfg.DataDir, storage.TilesDir),
			Concurrency:     cfg.Tiles.Concurrency,
			AverageTileSize: cfg.Tiles.AverageTileSize,
		}, nil, log),
	}, nil
}

func (a *app) Close() {
	_ = a.cache.Shutdown(context.Background())
	_ = a.db.Close()
}

func openDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.UpContext(context.Background(), db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}
