//go:build linux

// Package disk queries free space and inodes of the filesystem holding a
// path.
package disk

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ErrPathGone indicates that the queried path no longer exists.
var ErrPathGone = errors.New("disk: path gone")

// Snapshot is a point-in-time view of one filesystem's free space.
type Snapshot struct {
	BlockSize   int64
	FreeBlocks  uint64 // free blocks, including those reserved for root
	AvailBlocks uint64 // free blocks available to unprivileged users
	FreeInodes  uint64
}

// Stat returns the free-space snapshot of the filesystem containing path.
func Stat(path string) (Snapshot, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("statfs %s: %w", path, ErrPathGone)
		}
		return Snapshot{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	return Snapshot{
		BlockSize:   int64(st.Bsize),
		FreeBlocks:  st.Bfree,
		AvailBlocks: st.Bavail,
		FreeInodes:  st.Ffree,
	}, nil
}

// Consumed returns how much of baseline's free space is gone in cur.
// Space freed since the baseline counts as zero consumption.
func Consumed(baseline, cur Snapshot) Snapshot {
	return Snapshot{
		BlockSize:   cur.BlockSize,
		FreeBlocks:  sub0(baseline.FreeBlocks, cur.FreeBlocks),
		AvailBlocks: sub0(baseline.AvailBlocks, cur.AvailBlocks),
		FreeInodes:  sub0(baseline.FreeInodes, cur.FreeInodes),
	}
}

// Bytes returns AvailBlocks in bytes.
func (s Snapshot) Bytes() uint64 {
	if s.BlockSize <= 0 {
		return 0
	}
	return s.AvailBlocks * uint64(s.BlockSize)
}

func sub0(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}
