package bench

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/skeleton"
)

func BenchmarkResolverQuality_Curated(b *testing.B) {
	root := b.TempDir()
	expectedEdges := writeCuratedResolverFixture(b, root)
	ctx := context.Background()
	var precision float64
	var recall float64

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := newMapper(b)
		if _, err := m.Scan(ctx, root, nil, nil); err != nil {
			b.Fatalf("scan failed: %v", err)
		}
		precision, recall = edgeMetrics(m.Snapshot(), expectedEdges)
	}
	b.StopTimer()

	b.ReportMetric(precision, "precision")
	b.ReportMetric(recall, "recall")
}

func BenchmarkNavigationUsability_CommonQueries(b *testing.B) {
	root := b.TempDir()
	writeCuratedResolverFixture(b, root)
	ctx := context.Background()
	m := newMapper(b)
	if _, err := m.Scan(ctx, root, nil, nil); err != nil {
		b.Fatalf("scan failed: %v", err)
	}
	svc := skeleton.NewService(m, m.Pool(), m.Extractor())

	tokenCount := 0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := svc.RelatedSkeleton(ctx, []string{"app/main.py", "web/main.ts", "svc/main.go"}, 20000, 3)
		if err != nil {
			b.Fatalf("related skeleton failed: %v", err)
		}
		tokenCount = result.TotalTokens
	}
	b.StopTimer()
	b.ReportMetric(float64(tokenCount), "tokens/query_pack")
}

func writeCuratedResolverFixture(tb testing.TB, root string) map[string]bool {
	tb.Helper()
	files := map[string]string{
		"app/main.py":    "from util import foo\n\n\ndef run_py():\n    foo()\n",
		"app/util.py":    "def foo():\n    return 1\n",
		"web/main.ts":    "import { helper } from './util';\n\nexport function runTs() {\n  helper();\n}\n",
		"web/util.ts":    "export function helper() {\n  return 1;\n}\n",
		"svc/main.go":    "package svc\n\nfunc runSvc() {\n\tHandle()\n}\n",
		"svc/handler.go": "package svc\n\nfunc Handle() {}\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			tb.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			tb.Fatalf("write failed: %v", err)
		}
	}

	return map[string]bool{
		"run_py->foo":    true,
		"runTs->helper":  true,
		"runSvc->Handle": true,
	}
}

func edgeMetrics(snap *graph.Snapshot, expected map[string]bool) (precision float64, recall float64) {
	actual := make(map[string]bool)
	for _, edge := range snap.Edges {
		if !edge.Resolved() {
			continue
		}
		source, ok := snap.Symbol(edge.Source)
		if !ok {
			continue
		}
		target, ok := snap.Symbol(edge.Target)
		if !ok {
			continue
		}
		actual[source.Name+"->"+target.Name] = true
	}

	tp := 0
	fp := 0
	fn := 0
	for key := range actual {
		if expected[key] {
			tp++
		} else {
			fp++
		}
	}
	for key := range expected {
		if !actual[key] {
			fn++
		}
	}

	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	return precision, recall
}
