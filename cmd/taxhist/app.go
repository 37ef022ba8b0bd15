package main

import (
	"context"
	"fmt"
	"time"

	"taxhist/internal/backends"
	"taxhist/internal/backends/git"
	"taxhist/internal/backends/gogit"
	catalogpkg "taxhist/internal/catalog"
	"taxhist/internal/config"
	"taxhist/internal/history"
	"taxhist/internal/historycache"
	"taxhist/internal/logging"
	"taxhist/internal/paths"
	"taxhist/internal/storage"
)

// stopTimeout bounds how long a command waits for background refreshes.
const stopTimeout = 5 * time.Minute

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	repo    backends.Repository
	store   storage.Store
	service *historycache.Service
}

// newLogger creates a logger from the logging section of cfg.
func newLogger(cfg *config.Config) *logging.Logger {
	format := logging.HumanFormat
	if cfg.Logging.Format == string(logging.JSONFormat) {
		format = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
}

// openRepository selects the history backend named by backend.kind.
func openRepository(cfg *config.Config, logger *logging.Logger) (backends.Repository, error) {
	switch cfg.Backend.Kind {
	case backends.KindExec:
		adapter, err := git.NewGitAdapter(cfg, logger)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case backends.KindGoGit, "":
		repo, err := gogit.Open(cfg.RepoRoot, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// newApp wires repository, parser, pipeline, store and cache service.
func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	repo, err := openRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	extractor := history.NewSnapshotExtractor(repo, catalogpkg.NewXMLParser(), history.ExtractorOptions{
		ConsolidatedPath: paths.NormalizePath(cfg.Catalog.ConsolidatedPath),
		FragmentPrefix:   paths.NormalizePrefix(cfg.Catalog.FragmentPrefix),
		FragmentSuffix:   cfg.Catalog.FragmentSuffix,
		Concurrency:      cfg.History.FetchConcurrency,
	}, logger)
	walker := history.NewCommitWalker(repo, cfg.Catalog.TrackedPaths, logger)
	builder := history.NewBuilder(walker, extractor, cfg.History.NoiseWindow, logger)

	storePath := paths.ResolveCachePath(cfg.RepoRoot, cfg.Cache.Path, cfg.Cache.Store, cfg.Cache.Compress)
	store, err := storage.Open(cfg.Cache.Store, storePath, cfg.Cache.Compress, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	service, err := historycache.New(builder, store, historycache.Options{
		TTL:               time.Duration(cfg.Cache.TtlSeconds) * time.Second,
		EarlyRefreshRatio: cfg.Cache.EarlyRefreshRatio,
		RefreshInterval:   time.Duration(cfg.Cache.RefreshIntervalSeconds) * time.Second,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		store:   store,
		service: service,
	}, nil
}

// setupApp loads config and wires the app for a one-shot command.
func setupApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, newLogger(cfg))
}

// history reads the cached history for a CLI command. Unlike the server,
// a command with nothing cached waits for the first build.
func (a *app) history(ctx context.Context, force bool) (*historycache.Result, error) {
	if !force && a.service.Held(ctx) == nil {
		if _, err := a.service.Refresh(ctx, false); err != nil {
			return nil, err
		}
	}
	return a.service.History(ctx, force)
}

// Close waits for background refreshes and closes the store.
func (a *app) Close() error {
	return a.service.Stop(stopTimeout)
}

// newContext creates a new context for command execution.
func newContext() context.Context {
	return context.Background()
}
