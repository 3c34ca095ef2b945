package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/skelly-dev/codegraph/internal/fileutil"
	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/nav"
	"github.com/skelly-dev/codegraph/internal/skeleton"
	"github.com/skelly-dev/codegraph/internal/tools"
)

// IndexSummary is the machine-readable output of index and status.
type IndexSummary struct {
	Mode       string              `json:"mode"`
	RootPath   string              `json:"root_path"`
	Generation uint64              `json:"generation"`
	Cache      string              `json:"cache,omitempty"`
	FromCache  bool                `json:"from_cache"`
	Stats      graph.Stats         `json:"stats"`
	Languages  map[string]int      `json:"languages,omitempty"`
	Scan       *graph.ScanSummary  `json:"scan,omitempty"`
	Update     *tools.UpdateResult `json:"update,omitempty"`
	DurationMS int64               `json:"duration_ms"`
}

func PrintIndexSummary(w io.Writer, summary IndexSummary, asJSON bool) error {
	if asJSON {
		return fileutil.WriteJSON(w, summary)
	}

	fmt.Fprintf(w, "%s complete in %dms\n", summary.Mode, summary.DurationMS)
	fmt.Fprintf(w, "root: %s (generation %d)\n", summary.RootPath, summary.Generation)
	if summary.Cache != "" {
		source := "rebuilt"
		if summary.FromCache {
			source = "restored"
		}
		fmt.Fprintf(w, "cache: %s (%s)\n", summary.Cache, source)
	}
	stats := summary.Stats
	fmt.Fprintf(w, "graph: files=%d symbols=%d edges=%d unresolved=%d failed=%d\n",
		stats.Files, stats.Symbols, stats.Edges, stats.Unresolved, stats.Failed)
	if len(summary.Languages) > 0 {
		parts := make([]string, 0, len(summary.Languages))
		for _, lang := range slices.Sorted(maps.Keys(summary.Languages)) {
			parts = append(parts, fmt.Sprintf("%s=%d", lang, summary.Languages[lang]))
		}
		fmt.Fprintf(w, "languages: %s\n", strings.Join(parts, " "))
	}
	if scan := summary.Scan; scan != nil && scan.Unsupported > 0 {
		fmt.Fprintf(w, "unsupported files skipped: %d\n", scan.Unsupported)
	}
	if update := summary.Update; update != nil {
		fmt.Fprintf(w, "update: %s reparsed=%d removed=%d promoted=%d pruned=%d\n",
			update.Status, update.FilesReparsed, update.FilesRemoved, update.Promoted, update.Pruned)
	}
	issues := issueCount(summary)
	if issues > 0 {
		fmt.Fprintf(w, "issues: %d (use --json for details)\n", issues)
	}
	return nil
}

func issueCount(summary IndexSummary) int {
	n := 0
	if summary.Scan != nil {
		n += len(summary.Scan.Issues)
	}
	if summary.Update != nil {
		n += len(summary.Update.Issues)
	}
	return n
}

func languageCounts(snap *graph.Snapshot) map[string]int {
	counts := make(map[string]int)
	for _, entry := range snap.Files {
		counts[entry.Language]++
	}
	return counts
}

func durationMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func printAnalyze(w io.Writer, result *tools.AnalyzeResult) {
	if result.Error != "" {
		fmt.Fprintf(w, "%s: %s\n", result.FilePath, result.Error)
		return
	}
	fmt.Fprintf(w, "%s (%s, %d symbols)\n", result.FilePath, result.Language, len(result.Symbols))
	for _, imp := range result.Imports {
		fmt.Fprintf(w, "  import %s\n", imp)
	}
	for _, sym := range result.Symbols {
		printSymbolLine(w, sym)
	}
	if result.Skipped > 0 {
		fmt.Fprintf(w, "  (%d unrecognized declarations skipped)\n", result.Skipped)
	}
}

func printSymbolLine(w io.Writer, sym tools.SymbolInfo) {
	fmt.Fprintf(w, "  %-10s %s  %s:%d-%d\n", sym.SymbolType, sym.FQN, sym.FilePath, sym.StartLine, sym.EndLine)
}

func printDefinitions(w io.Writer, result *tools.DefinitionsResult) {
	if len(result.Definitions) == 0 {
		fmt.Fprintf(w, "no definitions found for %q\n", result.SymbolName)
		if len(result.Suggestions) > 0 {
			fmt.Fprintf(w, "did you mean: %s\n", strings.Join(result.Suggestions, ", "))
		}
		return
	}
	for _, sym := range result.Definitions {
		printSymbolLine(w, sym)
	}
}

func printReferences(w io.Writer, result *tools.ReferencesResult) {
	if len(result.References) == 0 {
		fmt.Fprintf(w, "no references found for %q\n", result.SymbolName)
		return
	}
	for _, ref := range result.References {
		target := ref.Target
		if !ref.Resolved {
			target += " (unresolved)"
		}
		fmt.Fprintf(w, "%s:%d:%d %s %s -> %s\n", ref.FilePath, ref.Line, ref.Column, ref.ReferenceType, ref.Source, target)
	}
}

func printSubgraph(w io.Writer, nodes []tools.NodeInfo, edges []tools.EdgeInfo) {
	fmt.Fprintf(w, "nodes (%d):\n", len(nodes))
	for _, node := range nodes {
		fmt.Fprintf(w, "  [%d] %-10s %s  %s:%d\n", node.Depth, node.SymbolType, node.ID, node.FilePath, node.StartLine)
	}
	fmt.Fprintf(w, "edges (%d):\n", len(edges))
	for _, edge := range edges {
		fmt.Fprintf(w, "  %s -%s-> %s\n", edge.Source, strings.ToLower(edge.EdgeType), edge.Target)
	}
}

func printSkeleton(w io.Writer, result *skeleton.Result) {
	for i, file := range result.Files {
		if file.Content == "" {
			continue
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprint(w, file.Content)
		if !strings.HasSuffix(file.Content, "\n") {
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "\n// %d tokens", result.TotalTokens)
	if result.Truncated {
		fmt.Fprint(w, ", truncated")
		if result.Reason != "" {
			fmt.Fprintf(w, ": %s", result.Reason)
		}
	}
	fmt.Fprintln(w)
}

func printSearch(w io.Writer, result *tools.SearchResult) {
	if len(result.Results) == 0 {
		fmt.Fprintf(w, "no symbols match %q\n", result.Query)
		return
	}
	for _, hit := range result.Results {
		fmt.Fprintf(w, "%6.2f  %-10s %s  %s:%d\n", hit.Score, hit.SymbolType, hit.FQN, hit.FilePath, hit.StartLine)
	}
}

func printEdgeRecords(w io.Writer, label, fqn string, records []nav.EdgeRecord) {
	fmt.Fprintf(w, "%s of %s (%d):\n", label, fqn, len(records))
	for _, record := range records {
		fmt.Fprintf(w, "  %s  %s:%d\n", record.Symbol.FQN, record.Edge.File, record.Edge.Line)
	}
}

func printPath(w io.Writer, from, to string, path []string) {
	if len(path) == 0 {
		fmt.Fprintf(w, "no path from %s to %s\n", from, to)
		return
	}
	fmt.Fprintln(w, strings.Join(path, " -> "))
}
