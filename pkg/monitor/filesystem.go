//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ja7ad/resmon/pkg/system/disk"
)

// FilesystemEntry is one tracked filesystem and the free space it had
// when tracking started.
type FilesystemEntry struct {
	Path     string
	Baseline disk.Snapshot
	Current  disk.Snapshot
}

// Consumed returns the space used since the baseline, clamped at zero.
func (e *FilesystemEntry) Consumed() disk.Snapshot {
	return disk.Consumed(e.Baseline, e.Current)
}

// DiskUsage is the consumed space over all tracked filesystems.
type DiskUsage struct {
	Filesystems int

	FreeBlocks  uint64
	AvailBlocks uint64
	FreeInodes  uint64 // nodes created since the baseline
	Bytes       uint64 // available space consumed

	Gone []string
}

// TrackFilesystem records the current free space of the filesystem holding
// path as its baseline. Tracking a path again keeps the first baseline.
func (m *Monitor) TrackFilesystem(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	m.mu.Lock()
	_, ok := m.disks[path]
	m.mu.Unlock()
	if ok {
		return nil
	}

	snap, err := m.cfg.Stat(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.disks[path]; !ok {
		m.disks[path] = &FilesystemEntry{Path: path, Baseline: snap, Current: snap}
	}
	return nil
}

// UntrackFilesystem stops tracking path.
func (m *Monitor) UntrackFilesystem(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.disks[path]; !ok {
		return fmt.Errorf("%s: %w", path, ErrNotTracked)
	}
	delete(m.disks, path)
	return nil
}

// PollFilesystems queries every tracked filesystem and sums what each
// consumed since its baseline.
func (m *Monitor) PollFilesystems(ctx context.Context) (DiskUsage, error) {
	m.diskMu.Lock()
	defer m.diskMu.Unlock()

	m.mu.Lock()
	paths := slices.Sorted(maps.Keys(m.disks))
	entries := make([]*FilesystemEntry, len(paths))
	for i, p := range paths {
		entries[i] = m.disks[p]
	}
	m.mu.Unlock()

	var u DiskUsage
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return u, err
		}
		snap, err := m.cfg.Stat(e.Path)
		switch {
		case errors.Is(err, disk.ErrPathGone):
			u.Gone = append(u.Gone, e.Path)
			continue
		case err != nil:
			m.log.Debug("statfs failed", "path", e.Path, "err", err)
		default:
			e.Current = snap
		}

		c := e.Consumed()
		u.Filesystems++
		u.FreeBlocks += c.FreeBlocks
		u.AvailBlocks += c.AvailBlocks
		u.FreeInodes += c.FreeInodes
		u.Bytes += c.Bytes()
	}

	if len(u.Gone) > 0 && m.cfg.PruneExited {
		m.mu.Lock()
		for _, p := range u.Gone {
			delete(m.disks, p)
		}
		m.mu.Unlock()
	}
	return u, nil
}
