package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/tools"
)

// RunIndex scans the repository from scratch and rewrites the cache.
func RunIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	asJSON, err := JSONFlag(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd, "indexing", asJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	scan, err := a.rebuild(cmd.Context())
	if err != nil {
		return err
	}
	summary := a.summary("index")
	summary.Scan = scan
	summary.DurationMS = durationMS(start)
	return PrintIndexSummary(cmd.OutOrStdout(), summary, asJSON)
}

// RunUpdate brings the graph up to date with the files on disk, reparsing
// only what changed since the cached state was written.
func RunUpdate(cmd *cobra.Command, args []string) error {
	start := time.Now()
	asJSON, err := JSONFlag(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd, "updating", asJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	scan, fromCache, err := a.ready(ctx)
	if err != nil {
		return err
	}
	update, err := a.tools.Update(ctx, tools.UpdateArgs{RootPath: a.root})
	a.progress.Done()
	if err != nil {
		return err
	}

	summary := a.summary("update")
	summary.FromCache = fromCache
	if !fromCache {
		summary.Scan = scan
	}
	summary.Update = update
	summary.DurationMS = durationMS(start)
	return PrintIndexSummary(cmd.OutOrStdout(), summary, asJSON)
}

// RunStatus reports the size of the graph, indexing first if needed.
func RunStatus(cmd *cobra.Command, args []string) error {
	start := time.Now()
	asJSON, err := JSONFlag(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd, "indexing", asJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	_, fromCache, err := a.ready(cmd.Context())
	if err != nil {
		return err
	}
	summary := a.summary("status")
	summary.FromCache = fromCache
	summary.DurationMS = durationMS(start)
	return PrintIndexSummary(cmd.OutOrStdout(), summary, asJSON)
}

func (a *app) summary(mode string) IndexSummary {
	snap := a.mapper.Snapshot()
	summary := IndexSummary{
		Mode:       mode,
		RootPath:   a.root,
		Generation: snap.Generation,
		Stats:      snap.Stats(),
		Languages:  languageCounts(snap),
	}
	if a.store != nil {
		summary.Cache = a.store.Path()
	}
	return summary
}
