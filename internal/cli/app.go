package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/cache"
	"github.com/skelly-dev/codegraph/internal/config"
	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/languages"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/tools"
)

// app holds everything a command needs: configuration, the mapper, the
// optional on-disk cache and the tool service on top of them.
type app struct {
	cfg      *config.Config
	root     string
	logger   *slog.Logger
	mapper   *graph.Mapper
	store    *cache.Store
	tools    *tools.Service
	progress *parseProgressReporter
}

// openApp loads configuration for the command and builds the mapper. The
// repository is not indexed until ready is called.
func openApp(cmd *cobra.Command, label string, quiet bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Level())

	fileRules, err := LoadIgnoreRules(root)
	if err != nil {
		return nil, err
	}
	ignoreRules := append(append([]string{}, cfg.Scan.IgnoreRules...), fileRules...)

	pool, err := parser.NewPool(languages.NewDefaultRegistry(), parser.PoolOptions{
		CacheSize: cfg.TreeCacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create parser pool: %w", err)
	}

	progress := newParseProgressReporter(label, quiet)
	mapper := graph.NewMapper(pool, graph.Options{
		Include:          cfg.Scan.Include,
		Exclude:          cfg.Scan.Exclude,
		IgnoreRules:      ignoreRules,
		RespectGitignore: cfg.Scan.RespectGitignore,
		Workers:          cfg.Workers,
		Logger:           logger,
		Progress:         progress.Update,
	})

	a := &app{
		cfg:      cfg,
		root:     root,
		logger:   logger,
		mapper:   mapper,
		progress: progress,
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return nil, fmt.Errorf("failed to read --no-cache flag: %w", err)
	}
	if path := cfg.ResolvedCachePath(root); path != "" && !noCache {
		store, err := cache.Open(path, logger)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	opts := tools.Options{
		Root:             root,
		DefaultMaxTokens: cfg.Skeleton.DefaultMaxTokens,
		DefaultDepth:     cfg.Traversal.DefaultDepth,
		Logger:           logger,
	}
	if a.store != nil {
		opts.Persister = a.store
	}
	a.tools = tools.New(mapper, opts)
	return a, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := OptionalStringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}
	root, err := OptionalStringFlag(cmd, "root")
	if err != nil {
		return nil, err
	}
	if root == "" {
		if root, err = resolveWorkingDirectory(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, err := OptionalStringFlag(cmd, "log-level")
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ready indexes the root, restoring from the cache when it is still valid.
// The second return value reports whether the cache was used.
func (a *app) ready(ctx context.Context) (*graph.ScanSummary, bool, error) {
	defer a.progress.Done()
	if a.store != nil {
		return cache.Warm(ctx, a.store, a.mapper, a.root)
	}
	summary, err := a.mapper.Scan(ctx, a.root, nil, nil)
	return summary, false, err
}

// rebuild discards any cached state and scans from scratch.
func (a *app) rebuild(ctx context.Context) (*graph.ScanSummary, error) {
	defer a.progress.Done()
	if a.store != nil {
		if err := a.store.Clear(ctx); err != nil {
			return nil, err
		}
	}
	summary, err := a.mapper.Scan(ctx, a.root, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := a.save(ctx); err != nil {
		return nil, err
	}
	return summary, nil
}

func (a *app) save(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	st, err := a.mapper.ExportState()
	if err != nil {
		return err
	}
	return a.store.Save(ctx, st)
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
