package graph

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/skelly-dev/codegraph/internal/extract"
	"github.com/skelly-dev/codegraph/internal/ignore"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/state"
	"golang.org/x/sync/errgroup"
)

type candidate struct {
	rel  string
	abs  string
	lang *parser.Language
	info state.FileInfo
}

// discover walks root and returns every file the filter accepts and the
// registry can parse, sorted by relative path. Files with an unsupported
// extension are counted, not returned.
func discover(ctx context.Context, root string, filter *ignore.Filter, registry *parser.Registry) ([]candidate, int, error) {
	var (
		files       []candidate
		unsupported int
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// Unreadable entries are skipped like ignored ones.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !filter.Accept(rel) {
			return nil
		}

		lang, ok := registry.ForFile(rel)
		if !ok {
			unsupported++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, candidate{
			rel:  rel,
			abs:  path,
			lang: lang,
			info: state.FileInfo{ModTime: info.ModTime(), Size: info.Size()},
		})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].rel < files[j].rel
	})
	return files, unsupported, nil
}

type fileResult struct {
	candidate
	hash      string
	record    *parser.FileSymbols
	diff      extract.Diff
	failure   string
	unchanged bool
}

// indexFiles reads, parses and extracts files in parallel. Per-file failures
// are returned as results with a failure message; only cancellation aborts.
// When previous is set, files whose digest still matches the recorded one are
// reported unchanged without being parsed.
func indexFiles(ctx context.Context, files []candidate, workers int, pool *parser.Pool, extractor *extract.Extractor, previous *state.State, progress ProgressFunc) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = indexFile(gctx, file, pool, extractor, previous)
			if progress != nil {
				progress(file.rel, int(done.Add(1)), len(files))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func indexFile(ctx context.Context, file candidate, pool *parser.Pool, extractor *extract.Extractor, previous *state.State) fileResult {
	result := fileResult{candidate: file}

	contents, err := os.ReadFile(file.abs)
	if err != nil {
		result.failure = fmt.Sprintf("read: %v", err)
		return result
	}
	result.hash = parser.Digest(contents)

	var before []parser.Symbol
	if previous != nil {
		if recorded, ok := previous.Files[file.rel]; ok {
			if recorded.Hash == result.hash {
				result.unchanged = true
				return result
			}
			before = recorded.Symbols
		}
	}

	tree, err := pool.ParseOrReparse(ctx, file.rel, contents)
	if err != nil {
		result.failure = err.Error()
		return result
	}

	record, diff, err := extractor.ExtractIncremental(tree, before)
	if err != nil {
		result.failure = err.Error()
		return result
	}
	result.record = record
	result.diff = diff
	return result
}

// apply records a result in st.
func (r fileResult) apply(st *state.State) {
	if r.unchanged {
		st.Touch(r.rel, r.info)
		return
	}
	if r.failure != "" {
		st.SetFailed(r.rel, r.lang.Name(), r.hash, r.info, r.failure)
		return
	}
	st.SetFileData(*r.record, r.info)
}
