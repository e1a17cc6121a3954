//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/resmon/pkg/system/dirsize"
)

// WorkDirEntry is the scan state of one tracked directory.
type WorkDirEntry struct {
	Path string

	state *dirsize.State

	Files    int64
	Bytes    int64
	Complete bool // a full pass has finished at least once
}

// WorkDirUsage is the total of one work-directory tick.
type WorkDirUsage struct {
	Dirs  int
	Files int64
	Bytes int64

	// Partial counts directories whose figures are from an unfinished
	// first pass.
	Partial int

	// Gone lists the tracked paths that no longer exist, sorted.
	Gone []string
}

// TrackWorkDir starts tracking the recursive size of path.
func (m *Monitor) TrackWorkDir(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dirs[path]; !ok {
		m.dirs[path] = &WorkDirEntry{Path: path}
	}
	return nil
}

// UntrackWorkDir stops tracking path and drops its scan state.
func (m *Monitor) UntrackWorkDir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dirs[path]; !ok {
		return fmt.Errorf("%s: %w", path, ErrNotTracked)
	}
	delete(m.dirs, path)
	return nil
}

// sliceBudget splits budget evenly over n directories, never below
// minSlice. Zero means unbounded.
func sliceBudget(budget time.Duration, n int, minSlice time.Duration) time.Duration {
	if budget == 0 || n == 0 {
		return 0
	}
	return max(budget/time.Duration(n), minSlice)
}

// PollWorkDirs advances the scan of every tracked directory by a share of
// budget and sums the latest figures. A zero budget lets every scan run to
// completion; a negative one is rejected. A directory that runs out of
// time keeps its progress for the next tick and reports its partial or
// previous figures.
func (m *Monitor) PollWorkDirs(ctx context.Context, budget time.Duration) (WorkDirUsage, error) {
	if budget < 0 {
		return WorkDirUsage{}, fmt.Errorf("%v: %w", budget, ErrInvalidBudget)
	}

	m.dirMu.Lock()
	defer m.dirMu.Unlock()

	m.mu.Lock()
	entries := slices.Collect(maps.Values(m.dirs))
	m.mu.Unlock()

	slice := sliceBudget(budget, len(entries), m.cfg.MinSlice)
	if len(entries) > 0 {
		m.log.Debug("scanning work dirs", "dirs", len(entries), "slice", slice)
	}

	var (
		fold sync.Mutex
		u    = WorkDirUsage{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, e := range entries {
		g.Go(func() error {
			res, st, err := m.cfg.Scanner.Scan(gctx, e.Path, e.state, slice)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}

			fold.Lock()
			defer fold.Unlock()
			switch {
			case errors.Is(err, dirsize.ErrPathGone):
				u.Gone = append(u.Gone, e.Path)
				return nil
			case err != nil:
				m.log.Debug("work dir scan failed", "path", e.Path, "err", err)
			default:
				e.state = st
				e.Files, e.Bytes = res.Files, res.Bytes
				e.Complete = e.Complete || res.Complete
			}
			u.Dirs++
			u.Files += e.Files
			u.Bytes += e.Bytes
			if !e.Complete {
				u.Partial++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return u, err
	}

	slices.Sort(u.Gone)
	if len(u.Gone) > 0 && m.cfg.PruneExited {
		m.mu.Lock()
		for _, p := range u.Gone {
			delete(m.dirs, p)
		}
		m.mu.Unlock()
	}
	return u, nil
}
