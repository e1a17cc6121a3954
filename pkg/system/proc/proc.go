//go:build linux

package proc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultRoot is where procfs is normally mounted.
const DefaultRoot = "/proc"

// maxCmdline bounds how much of /proc/<pid>/cmdline is kept.
const maxCmdline = 4096

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise
// falls back to 100 (common default).
//
// Note: On real systems, the authoritative way is `sysconf(_SC_CLK_TCK)`,
// but calling that requires cgo. For portability in a pure-Go library,
// this simplified approach is acceptable.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// TicksToMicros converts clock ticks to microseconds.
func TicksToMicros(ticks uint64) uint64 {
	return ticks * uint64(time.Second/time.Microsecond) / uint64(ClockTicks())
}

// FS reads per-process records below a procfs mount point.
// The zero value is not usable; use NewFS.
type FS struct {
	root string
}

// NewFS returns an FS rooted at root, or at DefaultRoot when root is empty.
func NewFS(root string) FS {
	if root == "" {
		root = DefaultRoot
	}
	return FS{root: root}
}

// Root returns the mount point this FS reads from.
func (p FS) Root() string { return p.root }

func (p FS) path(pid int, name string) string {
	if pid <= 0 {
		return filepath.Join(p.root, name)
	}
	return filepath.Join(p.root, strconv.Itoa(pid), name)
}

// open returns the named per-pid record, mapping a vanished process to
// ErrProcessGone.
func (p FS) open(pid int, name string) (*os.File, error) {
	f, err := os.Open(p.path(pid, name))
	if err != nil {
		return nil, goneOr(pid, name, err)
	}
	return f, nil
}

func goneOr(pid int, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("pid %d %s: %w", pid, name, ErrProcessGone)
	}
	return fmt.Errorf("pid %d %s: %w", pid, name, err)
}

//
// Per-PID readers
//

// statFields returns the fields of /proc/<pid>/stat that follow the comm
// field. fields[0] is the state (field 3 overall), so field N overall is
// fields[N-3].
//
// comm is in parens and may contain spaces or ") ", so everything up to the
// last ") " is dropped.
func (p FS) statFields(pid int) ([]string, error) {
	b, err := os.ReadFile(p.path(pid, "stat"))
	if err != nil {
		return nil, goneOr(pid, "stat", err)
	}
	line := string(b)
	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNoStat)
	}
	return strings.Fields(line[i+2:]), nil
}

func statField(fields []string, n int) (uint64, error) {
	idx := n - 3
	if idx < 0 || idx >= len(fields) {
		return 0, ErrShortStat
	}
	v, err := strconv.ParseUint(fields[idx], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stat field %d: %v: %w", n, err, ErrMalformed)
	}
	return v, nil
}

// CPUTicks returns the user (field 14) and kernel (field 15) CPU time of
// pid in clock ticks.
func (p FS) CPUTicks(pid int) (utime, stime uint64, err error) {
	fields, err := p.statFields(pid)
	if err != nil {
		return 0, 0, err
	}
	if utime, err = statField(fields, 14); err != nil {
		return 0, 0, fmt.Errorf("pid %d: %w", pid, err)
	}
	if stime, err = statField(fields, 15); err != nil {
		return 0, 0, fmt.Errorf("pid %d: %w", pid, err)
	}
	return utime, stime, nil
}

// CPUTime returns the cumulative user+kernel CPU time of pid in microseconds.
func (p FS) CPUTime(pid int) (uint64, error) {
	ut, st, err := p.CPUTicks(pid)
	if err != nil {
		return 0, err
	}
	return TicksToMicros(ut + st), nil
}

// Uptime reads the first value of /proc/uptime.
func (p FS) Uptime() (time.Duration, error) {
	b, err := os.ReadFile(p.path(0, "uptime"))
	if err != nil {
		return 0, fmt.Errorf("uptime: %w", err)
	}
	fields := strings.Fields(string(b))
	if len(fields) < 1 {
		return 0, ErrNoUptime
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || secs < 0 {
		return 0, ErrNoUptime
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// StartTime returns when pid started, from its ticks-since-boot (stat field
// 22) combined with the system uptime and the wall clock at call time:
//
//	start = now - uptime + starttime
func (p FS) StartTime(pid int) (time.Time, error) {
	fields, err := p.statFields(pid)
	if err != nil {
		return time.Time{}, err
	}
	ticks, err := statField(fields, 22)
	if err != nil {
		return time.Time{}, fmt.Errorf("pid %d: %w", pid, err)
	}
	up, err := p.Uptime()
	if err != nil {
		return time.Time{}, err
	}
	boot := time.Now().Add(-up)
	return boot.Add(time.Duration(TicksToMicros(ticks)) * time.Microsecond), nil
}

// Status holds the coarse memory figures of /proc/<pid>/status, in kB.
type Status struct {
	VmPeak uint64 // peak virtual size
	VmHWM  uint64 // peak resident size
	VmLib  uint64 // shared library code
	VmExe  uint64 // text
	VmData uint64 // data + stack
}

// ReadStatus reads the coarse memory snapshot of pid. Every field is
// required: a partial snapshot is never returned.
func (p FS) ReadStatus(pid int) (Status, error) {
	f, err := p.open(pid, "status")
	if err != nil {
		return Status{}, err
	}
	defer f.Close()

	rec := NewRecord(f)
	var s Status
	for _, a := range []struct {
		label string
		dst   *uint64
	}{
		{"VmPeak:", &s.VmPeak},
		{"VmHWM:", &s.VmHWM},
		{"VmLib:", &s.VmLib},
		{"VmExe:", &s.VmExe},
		{"VmData:", &s.VmData},
	} {
		v, err := rec.IntAttribute(a.label, true)
		if err != nil {
			return Status{}, fmt.Errorf("pid %d status: %w", pid, err)
		}
		*a.dst = v
	}
	return s, nil
}

// ReadProcIO reads /proc/<pid>/io and returns the "rchar" and "write_bytes"
// counters. These counters are monotonic and in bytes.
//
// rchar is used instead of read_bytes because read_bytes misses reads
// served by network filesystems.
//
// Note: Not all processes expose this file (some kernel threads, other
// users' processes); in that case you'll get an error.
func (p FS) ReadProcIO(pid int) (charsRead, bytesWritten uint64, err error) {
	f, err := p.open(pid, "io")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	rec := NewRecord(f)
	if charsRead, err = rec.IntAttribute("rchar:", true); err != nil {
		return 0, 0, fmt.Errorf("pid %d io: %w", pid, err)
	}
	if bytesWritten, err = rec.IntAttribute("write_bytes:", true); err != nil {
		return 0, 0, fmt.Errorf("pid %d io: %w", pid, err)
	}
	return charsRead, bytesWritten, nil
}

// CommandLine returns /proc/<pid>/cmdline with NUL separators replaced by
// spaces. Kernel threads and zombies have an empty command line.
func (p FS) CommandLine(pid int) (string, error) {
	f, err := p.open(pid, "cmdline")
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(bufio.NewReader(f), maxCmdline))
	if err != nil {
		return "", goneOr(pid, "cmdline", err)
	}
	return strings.TrimRight(strings.ReplaceAll(string(b), "\x00", " "), " "), nil
}

// Cwd returns the current working directory of pid.
func (p FS) Cwd(pid int) (string, error) {
	dir, err := os.Readlink(p.path(pid, "cwd"))
	if err != nil {
		return "", goneOr(pid, "cwd", err)
	}
	return dir, nil
}
