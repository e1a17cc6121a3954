// Package dirsize measures the recursive size of a directory in
// time-bounded slices.
//
// A measurement that does not finish within its budget keeps its progress
// in a State which the next call resumes from. A State belongs to exactly
// one caller; Scan never mutates the State it is given.
package dirsize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrPathGone indicates that the measured root no longer exists.
var ErrPathGone = errors.New("dirsize: path gone")

// Result is what a Scan call reports.
//
// When a full pass has completed at least once, Files and Bytes are the
// figures of the most recent complete pass. Before that they are the
// partial figures of the pass in progress.
type Result struct {
	Files int64
	Bytes int64

	// Complete is true when a pass finished during this call.
	Complete bool
}

// State is the resumable progress of a recursive measurement.
type State struct {
	root    string
	pending []string // paths not yet visited, used as a stack

	files int64 // running pass
	bytes int64

	lastFiles    int64 // last complete pass
	lastBytes    int64
	haveComplete bool
}

// Root returns the path the state measures.
func (s *State) Root() string { return s.root }

// Pending reports how many paths are queued for the pass in progress.
func (s *State) Pending() int { return len(s.pending) }

func (s *State) clone() *State {
	c := *s
	c.pending = append([]string(nil), s.pending...)
	return &c
}

func (s *State) result(complete bool) Result {
	if s.haveComplete {
		return Result{Files: s.lastFiles, Bytes: s.lastBytes, Complete: complete}
	}
	return Result{Files: s.files, Bytes: s.bytes}
}

// Scanner walks directory trees. The zero value is ready to use.
type Scanner struct {
	// now is overridable for tests
	now func() time.Time
}

func (sc Scanner) clock() time.Time {
	if sc.now != nil {
		return sc.now()
	}
	return time.Now()
}

// Scan continues measuring path from prev (nil on the first call, or when
// prev measured another path) for at most budget. A budget <= 0 means no
// time limit; ctx cancellation is honored either way. Entries are counted,
// directories are descended, symlinks are not followed.
func (sc Scanner) Scan(ctx context.Context, path string, prev *State, budget time.Duration) (Result, *State, error) {
	var st *State
	if prev == nil || prev.root != path {
		st = &State{root: path}
	} else {
		st = prev.clone()
	}
	if len(st.pending) == 0 {
		// new pass
		if _, err := os.Lstat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return st.result(false), st, fmt.Errorf("%s: %w", path, ErrPathGone)
			}
			return st.result(false), st, fmt.Errorf("%s: %w", path, err)
		}
		st.pending = append(st.pending, path)
	}

	var deadline time.Time
	if budget > 0 {
		deadline = sc.clock().Add(budget)
	}

	for len(st.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return st.result(false), st, err
		}
		if !deadline.IsZero() && !sc.clock().Before(deadline) {
			return st.result(false), st, nil
		}

		p := st.pending[len(st.pending)-1]
		st.pending = st.pending[:len(st.pending)-1]
		sc.visit(st, p)
	}

	st.lastFiles, st.lastBytes = st.files, st.bytes
	st.files, st.bytes = 0, 0
	st.haveComplete = true
	return st.result(true), st, nil
}

// visit counts p or queues its children. Entries that vanish or cannot be
// read are skipped: the tree is allowed to change under the scan.
func (sc Scanner) visit(st *State, p string) {
	info, err := os.Lstat(p)
	if err != nil {
		return
	}
	if !info.IsDir() {
		st.files++
		st.bytes += info.Size()
		return
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		st.pending = append(st.pending, filepath.Join(p, entries[i].Name()))
	}
}
