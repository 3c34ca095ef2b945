package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/fileutil"
	"github.com/skelly-dev/codegraph/internal/nav"
	"github.com/skelly-dev/codegraph/internal/tools"
)

// runQuery indexes the repository, then hands the ready app to fn.
func runQuery(cmd *cobra.Command, fn func(ctx context.Context, a *app, w io.Writer, asJSON bool) error) error {
	asJSON, err := JSONFlag(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd, "indexing", asJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, _, err := a.ready(ctx); err != nil {
		return err
	}
	return fn(ctx, a, cmd.OutOrStdout(), asJSON)
}

func RunAnalyze(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.AnalyzeCode(ctx, tools.AnalyzeCodeArgs{FilePath: absPath(args[0])})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printAnalyze(w, result)
		return nil
	})
}

func RunDefinition(cmd *cobra.Command, args []string) error {
	kind, err := OptionalStringFlag(cmd, "type")
	if err != nil {
		return err
	}
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.FindDefinitions(ctx, tools.FindDefinitionsArgs{SymbolName: args[0], SymbolType: kind})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printDefinitions(w, result)
		return nil
	})
}

func RunReferences(cmd *cobra.Command, args []string) error {
	kind, err := OptionalStringFlag(cmd, "type")
	if err != nil {
		return err
	}
	dir, err := OptionalStringFlag(cmd, "dir")
	if err != nil {
		return err
	}
	if dir != "" {
		dir = absPath(dir)
	}
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.FindReferences(ctx, tools.FindReferencesArgs{
			SymbolName: args[0],
			SymbolType: kind,
			Directory:  dir,
		})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printReferences(w, result)
		return nil
	})
}

func RunSubgraph(cmd *cobra.Command, args []string) error {
	depth, err := OptionalIntFlag(cmd, "depth")
	if err != nil {
		return err
	}
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.Subgraph(ctx, tools.SubgraphArgs{SymbolName: args[0], MaxDepth: depth})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printSubgraph(w, result.Nodes, result.Edges)
		return nil
	})
}

func RunSkeleton(cmd *cobra.Command, args []string) error {
	tokens, err := OptionalIntFlag(cmd, "max-tokens")
	if err != nil {
		return err
	}
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.FilesSkeleton(ctx, tools.FilesSkeletonArgs{FilePaths: absPaths(args), MaxTokens: tokens})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printSkeleton(w, result)
		return nil
	})
}

func RunRelated(cmd *cobra.Command, args []string) error {
	tokens, err := OptionalIntFlag(cmd, "max-tokens")
	if err != nil {
		return err
	}
	depth, err := OptionalIntFlag(cmd, "depth")
	if err != nil {
		return err
	}
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.RelatedSkeleton(ctx, tools.RelatedSkeletonArgs{
			ActiveFiles: absPaths(args),
			MaxTokens:   tokens,
			MaxDepth:    depth,
		})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printSkeleton(w, result)
		return nil
	})
}

func RunSearch(cmd *cobra.Command, args []string) error {
	limit, err := OptionalIntFlag(cmd, "limit")
	if err != nil {
		return err
	}
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.Search(ctx, tools.SearchArgs{Query: args[0], Limit: limit})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printSearch(w, result)
		return nil
	})
}

func RunGraph(cmd *cobra.Command, args []string) error {
	include, err := cmd.Flags().GetStringSlice("include")
	if err != nil {
		return fmt.Errorf("failed to read --include flag: %w", err)
	}
	exclude, err := cmd.Flags().GetStringSlice("exclude")
	if err != nil {
		return fmt.Errorf("failed to read --exclude flag: %w", err)
	}
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		result, err := a.tools.CodeGraph(ctx, tools.CodeGraphArgs{IncludeFiles: include, ExcludePatterns: exclude})
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.WriteJSON(w, result)
		}
		printSubgraph(w, result.Nodes, result.Edges)
		return nil
	})
}

func RunCallers(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		snap := a.mapper.Snapshot()
		target, err := nav.ResolveSymbolOrLocation(snap, args[0])
		if err != nil {
			return err
		}
		records := nav.CollectCallers(snap, target.FQN)
		if asJSON {
			return fileutil.WriteJSON(w, records)
		}
		printEdgeRecords(w, "callers", target.FQN, records)
		return nil
	})
}

func RunCallees(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		snap := a.mapper.Snapshot()
		source, err := nav.ResolveSymbolOrLocation(snap, args[0])
		if err != nil {
			return err
		}
		records := nav.CollectCallees(snap, source.FQN)
		if asJSON {
			return fileutil.WriteJSON(w, records)
		}
		printEdgeRecords(w, "callees", source.FQN, records)
		return nil
	})
}

func RunPath(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, func(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
		snap := a.mapper.Snapshot()
		from, err := nav.ResolveSingle(snap, args[0])
		if err != nil {
			return err
		}
		to, err := nav.ResolveSingle(snap, args[1])
		if err != nil {
			return err
		}
		path := nav.ShortestPath(snap, from.FQN, to.FQN)
		if asJSON {
			return fileutil.WriteJSON(w, map[string]any{"from": from.FQN, "to": to.FQN, "path": path})
		}
		printPath(w, from.FQN, to.FQN, path)
		return nil
	})
}

func absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		out = append(out, absPath(path))
	}
	return out
}
