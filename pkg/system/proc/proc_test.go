//go:build linux

package proc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ja7ad/resmon/pkg/system/proc/proctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTicks(t *testing.T) {
	t.Setenv("CLK_TCK", "")
	assert.Equal(t, 100, ClockTicks(), "defaults to 100 without an override")

	t.Setenv("CLK_TCK", "250")
	assert.Equal(t, 250, ClockTicks())

	t.Setenv("CLK_TCK", "-5")
	assert.Equal(t, 100, ClockTicks())
}

func TestTicksToMicros(t *testing.T) {
	t.Setenv("CLK_TCK", "100")
	assert.Equal(t, uint64(500_000), TicksToMicros(50))
	assert.Equal(t, uint64(0), TicksToMicros(0))
}

func TestNewFS_DefaultRoot(t *testing.T) {
	assert.Equal(t, DefaultRoot, NewFS("").Root())
	assert.Equal(t, "/x", NewFS("/x").Root())
}

func TestCPUTicks_CommWithSpacesAndParens(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(7).StatComm("evil) (name", 1, 120, 30, 5)
	fs := NewFS(root.Path)

	ut, st, err := fs.CPUTicks(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), ut)
	assert.Equal(t, uint64(30), st)
}

func TestCPUTime_Micros(t *testing.T) {
	t.Setenv("CLK_TCK", "100")
	root := proctest.NewRoot(t)
	root.Process(7).Stat(1, 100, 50, 0)

	us, err := NewFS(root.Path).CPUTime(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), us)
}

func TestCPUTicks_NoSuchPid(t *testing.T) {
	root := proctest.NewRoot(t)
	_, _, err := NewFS(root.Path).CPUTicks(999999)
	require.ErrorIs(t, err, ErrProcessGone)
}

func TestCPUTicks_ShortStat(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(8)
	require.NoError(t, os.WriteFile(filepath.Join(root.Path, "8", "stat"), []byte("8 (x) S 1 1 1\n"), 0o644))

	_, _, err := NewFS(root.Path).CPUTicks(8)
	require.ErrorIs(t, err, ErrShortStat)
}

func TestCPUTicks_NoCommDelimiter(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(8)
	require.NoError(t, os.WriteFile(filepath.Join(root.Path, "8", "stat"), []byte("garbage\n"), 0o644))

	_, _, err := NewFS(root.Path).CPUTicks(8)
	require.ErrorIs(t, err, ErrNoStat)
}

func TestUptime(t *testing.T) {
	root := proctest.NewRoot(t).Uptime(123.5)
	up, err := NewFS(root.Path).Uptime()
	require.NoError(t, err)
	assert.Equal(t, 123500*time.Millisecond, up)
}

func TestStartTime(t *testing.T) {
	t.Setenv("CLK_TCK", "100")
	root := proctest.NewRoot(t).Uptime(1000)
	// started 400s after boot, i.e. 600s ago
	root.Process(9).Stat(1, 0, 0, 40000)

	start, err := NewFS(root.Path).StartTime(9)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(-600*time.Second), start, 2*time.Second)
}

func TestReadStatus(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(10).Status(10240, 2048, 1500, 300, 700)

	s, err := NewFS(root.Path).ReadStatus(10)
	require.NoError(t, err)
	assert.Equal(t, Status{VmPeak: 10240, VmHWM: 2048, VmLib: 1500, VmExe: 300, VmData: 700}, s)
}

func TestReadStatus_MissingFieldIsAllOrNothing(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(10).RawStatus("Name:\tkthreadd\nVmPeak:\t 100 kB\n")

	s, err := NewFS(root.Path).ReadStatus(10)
	require.ErrorIs(t, err, ErrAttrNotFound)
	assert.Equal(t, Status{}, s)
}

func TestReadProcIO(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(11).IO(4096, 1024)

	r, w, err := NewFS(root.Path).ReadProcIO(11)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), r)
	assert.Equal(t, uint64(1024), w)
}

func TestReadProcIO_NoSuchPid(t *testing.T) {
	root := proctest.NewRoot(t)
	_, _, err := NewFS(root.Path).ReadProcIO(999999)
	require.ErrorIs(t, err, ErrProcessGone)
}

func TestCommandLine(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(12).Cmdline("/bin/sh", "-c", "sleep 10")

	cmd, err := NewFS(root.Path).CommandLine(12)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh -c sleep 10", cmd)
}

func TestCommandLine_KernelThreadIsEmpty(t *testing.T) {
	root := proctest.NewRoot(t)
	root.Process(2).Cmdline()

	cmd, err := NewFS(root.Path).CommandLine(2)
	require.NoError(t, err)
	assert.Empty(t, cmd)
}

func TestCwd(t *testing.T) {
	root := proctest.NewRoot(t)
	dir := t.TempDir()
	root.Process(13).Cwd(dir)

	got, err := NewFS(root.Path).Cwd(13)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestSelf_RealProc(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("no procfs mounted")
	}
	fs := NewFS("")
	me := os.Getpid()

	ut, st, err := fs.CPUTicks(me)
	require.NoError(t, err)

	// Take a second sample to ensure counters do not go backwards
	time.Sleep(5 * time.Millisecond)
	ut2, st2, err := fs.CPUTicks(me)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ut2, ut)
	assert.GreaterOrEqual(t, st2, st)

	_, err = fs.ReadStatus(me)
	require.NoError(t, err)

	start, err := fs.StartTime(me)
	require.NoError(t, err)
	assert.True(t, start.Before(time.Now().Add(time.Second)))
}
