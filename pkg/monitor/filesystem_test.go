//go:build linux

package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/resmon/pkg/system/disk"
)

type fakeDisks struct {
	mu    sync.Mutex
	snaps map[string]disk.Snapshot
}

func (f *fakeDisks) set(path string, s disk.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[path] = s
}

func (f *fakeDisks) stat(path string) (disk.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snaps[path]
	if !ok {
		return disk.Snapshot{}, fmt.Errorf("statfs %s: %w", path, disk.ErrPathGone)
	}
	return s, nil
}

func TestPollFilesystems_ConsumedSinceBaseline(t *testing.T) {
	fd := &fakeDisks{snaps: map[string]disk.Snapshot{
		"/a": {BlockSize: 4096, FreeBlocks: 1000, AvailBlocks: 900, FreeInodes: 50},
		"/b": {BlockSize: 1024, FreeBlocks: 10, AvailBlocks: 10, FreeInodes: 5},
	}}
	_, m := newTestMonitor(t, &Config{Stat: fd.stat})
	require.NoError(t, m.TrackFilesystem("/a"))
	require.NoError(t, m.TrackFilesystem("/b"))

	u, err := m.PollFilesystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DiskUsage{Filesystems: 2}, u)

	fd.set("/a", disk.Snapshot{BlockSize: 4096, FreeBlocks: 990, AvailBlocks: 890, FreeInodes: 47})
	fd.set("/b", disk.Snapshot{BlockSize: 1024, FreeBlocks: 20, AvailBlocks: 8, FreeInodes: 6})
	u, err = m.PollFilesystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), u.FreeBlocks, "freed space on /b counts as zero")
	assert.Equal(t, uint64(12), u.AvailBlocks)
	assert.Equal(t, uint64(3), u.FreeInodes)
	assert.Equal(t, uint64(10*4096+2*1024), u.Bytes)
}

func TestTrackFilesystem_KeepsFirstBaseline(t *testing.T) {
	fd := &fakeDisks{snaps: map[string]disk.Snapshot{"/a": {BlockSize: 1, AvailBlocks: 100}}}
	_, m := newTestMonitor(t, &Config{Stat: fd.stat})
	require.NoError(t, m.TrackFilesystem("/a"))
	fd.set("/a", disk.Snapshot{BlockSize: 1, AvailBlocks: 60})
	require.NoError(t, m.TrackFilesystem("/a"))

	u, err := m.PollFilesystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(40), u.Bytes)
}

func TestTrackFilesystem_Errors(t *testing.T) {
	fd := &fakeDisks{snaps: map[string]disk.Snapshot{}}
	_, m := newTestMonitor(t, &Config{Stat: fd.stat})
	require.ErrorIs(t, m.TrackFilesystem(""), ErrInvalidPath)
	require.ErrorIs(t, m.TrackFilesystem("/missing"), disk.ErrPathGone)
	require.ErrorIs(t, m.UntrackFilesystem("/missing"), ErrNotTracked)
}

func TestPollFilesystems_Gone(t *testing.T) {
	fd := &fakeDisks{snaps: map[string]disk.Snapshot{"/a": {BlockSize: 1}, "/b": {BlockSize: 1}}}
	_, m := newTestMonitor(t, &Config{Stat: fd.stat, PruneExited: true})
	require.NoError(t, m.TrackFilesystem("/a"))
	require.NoError(t, m.TrackFilesystem("/b"))
	delete(fd.snaps, "/b")

	u, err := m.PollFilesystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/b"}, u.Gone)
	assert.Equal(t, 1, u.Filesystems)
	require.ErrorIs(t, m.UntrackFilesystem("/b"), ErrNotTracked)
	require.NoError(t, m.UntrackFilesystem("/a"))
}

func TestPollFilesystems_RealStatfs(t *testing.T) {
	_, m := newTestMonitor(t, nil)
	require.NoError(t, m.TrackFilesystem(t.TempDir()))
	u, err := m.PollFilesystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, u.Filesystems)
}
