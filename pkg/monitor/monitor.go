//go:build linux

// Package monitor samples the resource usage of a set of processes,
// working directories and filesystems.
//
// A Monitor owns one table per entity kind. Each Poll call is one tick: it
// reads every tracked entity of its kind once, concurrently, and folds the
// results into a tree total. The caller decides how often to tick and
// keeps any running peaks (see Window and summary.MergeMax).
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/resmon/pkg/system/proc"
)

// Monitor tracks entities and polls them. Its methods are safe for
// concurrent use; polls of the same entity kind are serialized.
type Monitor struct {
	cfg *Config
	fs  proc.FS
	log *slog.Logger

	mu    sync.Mutex
	procs map[int]*ProcessEntry
	dirs  map[string]*WorkDirEntry
	disks map[string]*FilesystemEntry

	// one tick at a time per table
	procMu sync.Mutex
	dirMu  sync.Mutex
	diskMu sync.Mutex
}

// New creates a Monitor. Fields set in cfg override the defaults.
func New(cfg *Config) *Monitor {
	c := merge(cfg)
	return &Monitor{
		cfg:   c,
		fs:    proc.NewFS(c.ProcRoot),
		log:   c.Logger,
		procs: make(map[int]*ProcessEntry),
		dirs:  make(map[string]*WorkDirEntry),
		disks: make(map[string]*FilesystemEntry),
	}
}

// FS returns the procfs reader the monitor polls through.
func (m *Monitor) FS() proc.FS { return m.fs }

// Track starts tracking pid. Tracking a pid twice keeps its history.
func (m *Monitor) Track(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("pid %d: %w", pid, ErrInvalidPID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.procs[pid]; !ok {
		m.procs[pid] = NewProcessEntry(pid)
		m.log.Debug("tracking process", "pid", pid)
	}
	return nil
}

// TrackTree tracks root and all its live descendants and returns the pids
// newly tracked.
func (m *Monitor) TrackTree(root int) ([]int, error) {
	if root <= 0 {
		return nil, fmt.Errorf("pid %d: %w", root, ErrInvalidPID)
	}
	pids, err := m.fs.Descendants(root)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var added []int
	for _, pid := range pids {
		if _, ok := m.procs[pid]; ok {
			continue
		}
		m.procs[pid] = NewProcessEntry(pid)
		added = append(added, pid)
	}
	if len(added) > 0 {
		m.log.Debug("tracking process tree", "root", root, "added", added)
	}
	return added, nil
}

// Untrack stops tracking pid and discards its history.
func (m *Monitor) Untrack(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.procs[pid]; !ok {
		return fmt.Errorf("pid %d: %w", pid, ErrNotTracked)
	}
	delete(m.procs, pid)
	return nil
}

func (m *Monitor) dropProcess(pid int) {
	m.mu.Lock()
	delete(m.procs, pid)
	m.mu.Unlock()
}

// Tracked returns the tracked pids in ascending order.
func (m *Monitor) Tracked() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.procs))
}

// ProcessUsage is the tree total of one process tick.
type ProcessUsage struct {
	Tracked  int // processes polled
	Measured int // processes that produced data

	CPUDelta time.Duration // CPU used since the previous tick
	CPUTime  time.Duration // cumulative CPU of the measured processes

	ReadDelta  uint64
	WriteDelta uint64

	Memory MemorySnapshot

	// Gone lists the pids found exited, ascending.
	Gone []int
}

// PollProcesses polls every tracked process once and sums the results.
// Exited processes are listed in Gone and, with Config.PruneExited,
// removed. Parse failures of single metric groups are logged and do not
// fail the tick; only ctx cancellation does.
func (m *Monitor) PollProcesses(ctx context.Context) (ProcessUsage, error) {
	m.procMu.Lock()
	defer m.procMu.Unlock()

	m.mu.Lock()
	entries := slices.Collect(maps.Values(m.procs))
	m.mu.Unlock()

	var (
		fold sync.Mutex
		u    = ProcessUsage{Tracked: len(entries)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := e.Poll(m.fs)

			fold.Lock()
			defer fold.Unlock()
			if Gone(err) {
				u.Gone = append(u.Gone, e.PID)
				return nil
			}
			if err != nil {
				m.log.Debug("partial process sample", "pid", e.PID, "err", err)
			}
			if s.groups == 0 {
				return nil
			}
			u.Measured++
			u.CPUDelta += s.CPUDelta
			u.CPUTime += s.CPUTime
			u.ReadDelta += s.ReadDelta
			u.WriteDelta += s.WriteDelta
			u.Memory.add(s.Memory)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return u, err
	}

	slices.Sort(u.Gone)
	if len(u.Gone) > 0 {
		m.log.Debug("processes gone", "pids", u.Gone)
		if m.cfg.PruneExited {
			m.mu.Lock()
			for _, pid := range u.Gone {
				delete(m.procs, pid)
			}
			m.mu.Unlock()
		}
	}
	return u, nil
}
