package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/server"
	"github.com/skelly-dev/codegraph/internal/watch"
)

// RunServe indexes the repository and serves the tools over MCP on stdio.
// With watching enabled, file changes are folded into the graph while the
// server runs.
func RunServe(cmd *cobra.Command, version string) error {
	a, err := openApp(cmd, "indexing", true)
	if err != nil {
		return err
	}
	defer a.Close()

	watchEnabled := a.cfg.Watch
	if cmd.Flags().Changed("watch") {
		if watchEnabled, err = cmd.Flags().GetBool("watch"); err != nil {
			return fmt.Errorf("failed to read --watch flag: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	summary, fromCache, err := a.ready(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("graph ready",
		"root", a.root,
		"files", summary.Files,
		"symbols", summary.Symbols,
		"edges", summary.Edges,
		"from_cache", fromCache,
	)

	srv := server.New(a.tools, a.mapper, version, a.logger)
	g, gctx := errgroup.WithContext(ctx)

	if watchEnabled {
		w, err := watch.New(a.mapper, watch.Options{
			Debounce: a.cfg.WatchDebounce,
			Logger:   a.logger,
			OnUpdate: func(*graph.UpdateSummary) {
				if err := a.save(gctx); err != nil {
					a.logger.Warn("save cache", "error", err)
				}
			},
		})
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Close()
		a.logger.Info("watching for changes", "debounce", a.cfg.WatchDebounce)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
