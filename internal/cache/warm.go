package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/skelly-dev/codegraph/internal/graph"
)

// Warm brings mapper up for root, restoring from the cache when every
// cached digest still matches the files on disk and scanning otherwise. A
// rejected cache is cleared and rewritten from the fresh scan. The second
// return value reports whether the cache was used.
func Warm(ctx context.Context, store *Store, mapper *graph.Mapper, root string) (*graph.ScanSummary, bool, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, false, fmt.Errorf("resolve root: %w", err)
	}
	st, err := store.Load(ctx, root)
	if err == nil {
		summary, err := mapper.Restore(ctx, root, st)
		if err == nil {
			return summary, true, nil
		}
		if !errors.Is(err, graph.ErrStaleState) {
			return nil, false, err
		}
		store.logger.Info("cache rejected", "path", store.path, "reason", err)
	} else if !errors.Is(err, ErrEmpty) && !errors.Is(err, ErrStale) {
		return nil, false, err
	}

	if err := store.Clear(ctx); err != nil {
		return nil, false, err
	}
	summary, err := mapper.Scan(ctx, root, nil, nil)
	if err != nil {
		return nil, false, err
	}
	exported, err := mapper.ExportState()
	if err != nil {
		return nil, false, err
	}
	if err := store.Save(ctx, exported); err != nil {
		store.logger.Warn("save cache", "path", store.path, "error", err)
	}
	return summary, false, nil
}
