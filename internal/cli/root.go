package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codegraph",
		Short: "Incremental code graph for LLM agents",
		Long: `Codegraph parses a repository with tree-sitter, keeps a graph of its
symbols and the calls, inheritance and references between them, and
answers structural queries: definitions, references, neighbourhoods and
token-budgeted skeletons of files.

Run "codegraph serve" to expose the queries as MCP tools on stdio.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default: <root>/.codegraph.toml)")
	rootCmd.PersistentFlags().String("root", "", "Repository root (default: working directory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Do not read or write the on-disk graph cache")

	// Index Commands
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the code graph tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServe(cmd, version)
		},
	}
	serveCmd.Flags().Bool("watch", false, "Update the graph as files change")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Scan the repository from scratch and rebuild the cache",
		Args:  cobra.NoArgs,
		RunE:  RunIndex,
	}
	indexCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Incrementally update the graph for changed files",
		Args:  cobra.NoArgs,
		RunE:  RunUpdate,
	}
	updateCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show graph size and cache state",
		Args:  cobra.NoArgs,
		RunE:  RunStatus,
	}
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")

	// Query Commands
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "List the symbols and imports of one file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunAnalyze,
	}
	analyzeCmd.Flags().Bool("json", false, "Print machine-readable analysis")

	definitionCmd := &cobra.Command{
		Use:   "definition <name>",
		Short: "Find where a symbol is defined",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDefinition,
	}
	definitionCmd.Flags().String("type", "", "Only match this symbol kind")
	definitionCmd.Flags().Bool("json", false, "Print machine-readable definitions")

	referencesCmd := &cobra.Command{
		Use:   "references <name>",
		Short: "Show calls, inheritance and references to a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  RunReferences,
	}
	referencesCmd.Flags().String("type", "", "Only match this symbol kind")
	referencesCmd.Flags().String("dir", "", "Only report references under this directory")
	referencesCmd.Flags().Bool("json", false, "Print machine-readable references")

	subgraphCmd := &cobra.Command{
		Use:   "subgraph <name>",
		Short: "Show the neighbourhood of a symbol up to depth N",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSubgraph,
	}
	subgraphCmd.Flags().Int("depth", 2, "Traversal depth (1-5)")
	subgraphCmd.Flags().Bool("json", false, "Print machine-readable subgraph")

	skeletonCmd := &cobra.Command{
		Use:   "skeleton <file>...",
		Short: "Render token-budgeted skeletons of files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunSkeleton,
	}
	skeletonCmd.Flags().Int("max-tokens", 4000, "Token budget (at least 1)")
	skeletonCmd.Flags().Bool("json", false, "Print machine-readable skeletons")

	relatedCmd := &cobra.Command{
		Use:   "related <file>...",
		Short: "Render skeletons of files related to the given ones",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunRelated,
	}
	relatedCmd.Flags().Int("max-tokens", 4000, "Token budget (at least 1)")
	relatedCmd.Flags().Int("depth", 3, "Hops to follow from the given files (1-10)")
	relatedCmd.Flags().Bool("json", false, "Print machine-readable skeletons")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank symbols by relevance to free text",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSearch,
	}
	searchCmd.Flags().Int("limit", 10, "Maximum number of results (1-100)")
	searchCmd.Flags().Bool("json", false, "Print machine-readable results")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Dump the symbol graph, optionally filtered by path",
		Args:  cobra.NoArgs,
		RunE:  RunGraph,
	}
	graphCmd.Flags().StringSlice("include", nil, "Only include files matching these globs")
	graphCmd.Flags().StringSlice("exclude", nil, "Drop files matching these gitignore-style patterns")
	graphCmd.Flags().Bool("json", false, "Print machine-readable graph")

	// Navigate Commands
	callersCmd := &cobra.Command{
		Use:   "callers <name|file:line>",
		Short: "Show direct callers of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCallers,
	}
	callersCmd.Flags().Bool("json", false, "Print machine-readable caller results")

	calleesCmd := &cobra.Command{
		Use:   "callees <name|file:line>",
		Short: "Show direct callees of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCallees,
	}
	calleesCmd.Flags().Bool("json", false, "Print machine-readable callee results")

	pathCmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Find the shortest path between two symbols",
		Args:  cobra.ExactArgs(2),
		RunE:  RunPath,
	}
	pathCmd.Flags().Bool("json", false, "Print machine-readable path results")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codegraph %s\n", version)
		},
	}

	rootCmd.AddCommand(
		serveCmd,
		indexCmd,
		updateCmd,
		statusCmd,
		analyzeCmd,
		definitionCmd,
		referencesCmd,
		subgraphCmd,
		skeletonCmd,
		relatedCmd,
		searchCmd,
		graphCmd,
		callersCmd,
		calleesCmd,
		pathCmd,
		versionCmd,
	)

	return rootCmd
}
