// Package cmd provides the codesearch CLI commands: index, search,
// serve, mcp, stats, clear, list, doctor, setup, and cache (spec.md
// §6).
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codesearch-dev/codesearch/internal/chunk"
	"github.com/codesearch-dev/codesearch/internal/config"
	"github.com/codesearch-dev/codesearch/internal/cserr"
	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/fuse"
	"github.com/codesearch-dev/codesearch/internal/indexmgr"
	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/query"
	"github.com/codesearch-dev/codesearch/internal/repo"
	"github.com/codesearch-dev/codesearch/internal/vectorindex"
	"github.com/codesearch-dev/codesearch/internal/walk"
	"github.com/codesearch-dev/codesearch/internal/watch"
)

// app bundles the storage/model layers every subcommand needs, wired
// from config and the resolved repository location. Commands that
// don't need the full stack (list, cache) open only what they need
// directly instead of going through this helper.
type app struct {
	cfg      config.Config
	loc      repo.Location
	env      *kv.Environment
	vectors  *vectorindex.Index
	embedder embed.Embedder
	cache    *embedcache.Cache
	dispatch *chunk.Dispatcher
	walker   *walk.Walker
	mgr      *indexmgr.Manager
	engine   *query.Engine
}

// vectorsDir is the fixed vector-index subdirectory of a resolved
// DBPath (spec.md §6's on-disk layout).
func vectorsDir(dbPath string) string { return filepath.Join(dbPath, "vectors") }

// cacheDir resolves the model-scoped persistent embedding cache
// directory under ~/.codesearch/embedding_cache (spec.md §4.E), shared
// across every repository's index for this modelID rather than scoped
// to dbPath, since cache entries are content-addressed by chunk text
// and model identifier alone. Falls back to a dbPath-local cache
// directory if the home directory can't be resolved.
func cacheDir(dbPath, modelID string) string {
	root, err := embedcache.DefaultRoot()
	if err != nil {
		return filepath.Join(dbPath, "cache", modelID)
	}
	return embedcache.ModelDir(root, modelID)
}

// resolveLocation resolves startPath's repository location, optionally
// forcing the global ~/.codesearch.dbs/ database instead of the
// default local-then-global precedence order (the `index --global`
// and `serve`/`search` flows that want one location deterministically).
func resolveLocation(startPath string, global bool) (repo.Location, error) {
	loc, err := repo.Resolve(startPath)
	if err != nil {
		return repo.Location{}, err
	}
	if !global {
		return loc, nil
	}
	dbPath, err := repo.GlobalDBPath(loc.RepoRoot)
	if err != nil {
		return repo.Location{}, err
	}
	loc.DBPath = dbPath
	loc.Global = true
	return loc, nil
}

// openApp resolves startPath's repository location, loads layered
// config, and opens every storage layer plus the Index Manager and
// Query Engine over it. createIndex controls whether a missing local
// database directory is created (the `--create-index` flag shared by
// search/mcp) or treated as not-yet-indexed.
func openApp(startPath string, createIndex bool) (*app, error) {
	loc, err := repo.Resolve(startPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repository: %w", err)
	}
	return openAppAt(loc, createIndex)
}

// openAppAt is openApp over an already-resolved location, for callers
// (like `index --global`) that need to pick the database location
// explicitly rather than through repo.Resolve's default precedence.
func openAppAt(loc repo.Location, createIndex bool) (*app, error) {
	cfg, err := config.Load(loc.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if !createIndex && !dirExists(loc.DBPath) {
		return nil, fmt.Errorf("%w: run 'codesearch index' first", cserr.ErrNotIndexed)
	}

	env, err := kv.Open(loc.DBPath, cfg.KV.InitialSizeMB, cfg.KV.MaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("open kv environment: %w", err)
	}

	embedder := buildEmbedder(cfg)

	dims := embedder.Dimensions()
	vectors, err := vectorindex.Load(vectorsDir(loc.DBPath))
	if err != nil {
		vectors = vectorindex.New(dims)
	}

	cache, err := embedcache.New(cacheDir(loc.DBPath, embedder.ModelID()), cfg.Cache.MaxMemoryMB, cfg.Cache.QueryCacheN, dims)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}

	dispatch := chunk.NewDispatcher()

	walker, err := walk.New(loc.RepoRoot)
	if err != nil {
		env.Close()
		dispatch.Close()
		return nil, fmt.Errorf("build file walker: %w", err)
	}

	mgr := indexmgr.New(indexmgr.Config{
		Root:       loc.RepoRoot,
		DBPath:     loc.DBPath,
		VectorsDir: vectorsDir(loc.DBPath),
		BatchSize:  cfg.Embed.BatchSize,
	}, env, vectors, embedder, cache, dispatch, walker)

	engine := query.New(env, vectors, embedder, cache, fuse.NoopReranker{})

	return &app{
		cfg:      cfg,
		loc:      loc,
		env:      env,
		vectors:  vectors,
		embedder: embedder,
		cache:    cache,
		dispatch: dispatch,
		walker:   walker,
		mgr:      mgr,
		engine:   engine,
	}, nil
}

// startWatcher runs the Watcher Suite, its Tick drain loop, and the
// background consistency checker over a's repository until ctx is
// canceled, for the long-running `serve`/`mcp` commands (spec.md §4.N's
// three event sources feeding the Index Manager, and §4.M's
// consistency checker).
func (a *app) startWatcher(ctx context.Context) {
	opts := watch.DefaultOptions()
	suite := watch.New(a.loc.RepoRoot, a.mgr, a.walker, opts)
	go func() {
		if err := suite.Run(ctx); err != nil {
			slog.Warn("watcher suite stopped", slog.String("error", err.Error()))
		}
	}()

	go func() {
		ticker := time.NewTicker(opts.DebounceWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.mgr.Tick(ctx); err != nil {
					slog.Warn("index tick failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	go a.mgr.RunConsistencyChecker(ctx, 5*time.Minute)
}

// Close releases every storage handle opened by openApp.
func (a *app) Close() error {
	a.dispatch.Close()
	return a.env.Close()
}

// buildEmbedder selects the Ollama adapter or the offline static
// fallback per spec.md §4.F, probing Ollama's reachability with a
// short-lived context so a cold daemon doesn't stall every command.
func buildEmbedder(cfg config.Config) embed.Embedder {
	if cfg.Embed.Provider == "static" {
		return embed.NewStaticEmbedder()
	}

	ollama := embed.NewOllamaEmbedder(embed.OllamaConfig{
		BaseURL: cfg.Embed.OllamaURL,
		Model:   cfg.Embed.Model,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ollama.Available(ctx) {
		return ollama
	}
	return embed.NewStaticEmbedder()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
