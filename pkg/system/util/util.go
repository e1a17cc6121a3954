//go:build linux

// Package util holds small helpers shared by the command-line tools.
package util

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ja7ad/resmon/pkg/system/proc"
	"github.com/ja7ad/resmon/pkg/types"
)

// EMA is an exponential moving average. The first value passes through.
type EMA struct {
	alpha, prev float64
	ok          bool
}

func NewEMA(alpha float64) *EMA { return &EMA{alpha: alpha} }

func (e *EMA) Next(v float64) float64 {
	if !e.ok {
		e.prev, e.ok = v, true
		return v
	}
	e.prev = e.alpha*v + (1-e.alpha)*e.prev
	return e.prev
}

func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}

// ParsePIDs parses pid arguments. Each argument is a pid, a comma
// separated list of pids, or an inclusive range "a..b". Duplicates are
// dropped; the first occurrence keeps its position.
func ParsePIDs(args []string) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	add := func(pid int) {
		if !seen[pid] {
			seen[pid] = true
			out = append(out, pid)
		}
	}

	for _, arg := range args {
		for _, tok := range strings.Split(arg, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			lo, hi, isRange := strings.Cut(tok, "..")
			a, err := parsePID(lo)
			if err != nil {
				return nil, err
			}
			if !isRange {
				add(a)
				continue
			}
			b, err := parsePID(hi)
			if err != nil {
				return nil, err
			}
			if b < a {
				return nil, fmt.Errorf("pid range %q: end before start", tok)
			}
			for pid := a; pid <= b; pid++ {
				add(pid)
			}
		}
	}
	return out, nil
}

// maxPID is the kernel's upper limit for pid_max.
const maxPID = 4194304

func parsePID(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 || v > maxPID {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	return v, nil
}

// FmtFloat formats f with four decimals, for CSV columns.
func FmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', 4, 64) }

// SystemSummary describes the host for report headers.
func SystemSummary() (host, kernel, cpus, mem string) {
	host, _ = os.Hostname()
	if host == "" {
		host = "unknown"
	}

	kernel = "unknown"
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		kernel = unix.ByteSliceToString(uts.Release[:])
	}

	cpus = strconv.Itoa(runtime.NumCPU())

	mem = "unknown"
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		mem = types.Bytes(uint64(si.Totalram) * uint64(si.Unit)).Humanized()
	}
	return host, kernel, cpus, mem
}

// PidNames maps each pid to its command line, or to "?" when it cannot be
// read. Kernel threads have an empty command line and map to "[kthread]".
func PidNames(fs proc.FS, pids []int) map[int]string {
	names := make(map[int]string, len(pids))
	for _, pid := range slices.Compact(slices.Sorted(slices.Values(pids))) {
		cmd, err := fs.CommandLine(pid)
		switch {
		case err != nil:
			names[pid] = "?"
		case cmd == "":
			names[pid] = "[kthread]"
		default:
			names[pid] = cmd
		}
	}
	return names
}
