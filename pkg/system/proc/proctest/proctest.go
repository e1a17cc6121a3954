// Package proctest builds fake procfs trees for tests.
package proctest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Root is a fake procfs mount point inside a test temp dir.
type Root struct {
	t    testing.TB
	Path string
}

// NewRoot creates an empty procfs tree with a 1000s uptime.
func NewRoot(t testing.TB) *Root {
	t.Helper()
	r := &Root{t: t, Path: t.TempDir()}
	r.Uptime(1000)
	return r
}

// Uptime writes /proc/uptime.
func (r *Root) Uptime(secs float64) *Root {
	r.write(filepath.Join(r.Path, "uptime"), fmt.Sprintf("%.2f %.2f\n", secs, secs*3))
	return r
}

// Process creates /proc/<pid> and returns a writer for its records.
func (r *Root) Process(pid int) *Process {
	r.t.Helper()
	dir := filepath.Join(r.Path, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", dir, err)
	}
	return &Process{root: r, pid: pid, dir: dir}
}

// Remove deletes /proc/<pid>, as if the process exited.
func (r *Root) Remove(pid int) {
	r.t.Helper()
	if err := os.RemoveAll(filepath.Join(r.Path, strconv.Itoa(pid))); err != nil {
		r.t.Fatalf("remove pid %d: %v", pid, err)
	}
}

func (r *Root) write(path, content string) {
	r.t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", path, err)
	}
}

// Process writes the records of one fake pid.
type Process struct {
	root *Root
	pid  int
	dir  string
}

// Stat writes a full 52-field /proc/<pid>/stat line.
func (p *Process) Stat(ppid int, utime, stime, starttime uint64) *Process {
	return p.StatComm(fmt.Sprintf("proc%d", p.pid), ppid, utime, stime, starttime)
}

// StatComm is Stat with an explicit comm, which may contain spaces and parens.
func (p *Process) StatComm(comm string, ppid int, utime, stime, starttime uint64) *Process {
	fields := []string{
		"S", strconv.Itoa(ppid), "1", "1", "0", "-1", "4194304",
		"100", "0", "0", "0",
		strconv.FormatUint(utime, 10), strconv.FormatUint(stime, 10),
		"0", "0", "20", "0", "1", "0",
		strconv.FormatUint(starttime, 10),
		"1048576", "100", "18446744073709551615",
	}
	// fields 26..52
	for i := 26; i <= 52; i++ {
		fields = append(fields, "0")
	}
	line := fmt.Sprintf("%d (%s) %s\n", p.pid, comm, strings.Join(fields, " "))
	p.root.write(filepath.Join(p.dir, "stat"), line)
	return p
}

// RawStat writes /proc/<pid>/stat verbatim.
func (p *Process) RawStat(content string) *Process {
	p.root.write(filepath.Join(p.dir, "stat"), content)
	return p
}

// Status writes /proc/<pid>/status with the given VmPeak, VmHWM, VmLib,
// VmExe and VmData values in kB.
func (p *Process) Status(peak, hwm, lib, exe, data uint64) *Process {
	s := fmt.Sprintf(`Name:	proc%d
State:	S (sleeping)
Pid:	%d
VmPeak:	%8d kB
VmSize:	%8d kB
VmHWM:	%8d kB
VmRSS:	%8d kB
VmData:	%8d kB
VmStk:	     132 kB
VmExe:	%8d kB
VmLib:	%8d kB
Threads:	1
`, p.pid, p.pid, peak, peak, hwm, hwm, data, exe, lib)
	p.root.write(filepath.Join(p.dir, "status"), s)
	return p
}

// RawStatus writes /proc/<pid>/status verbatim.
func (p *Process) RawStatus(content string) *Process {
	p.root.write(filepath.Join(p.dir, "status"), content)
	return p
}

// IO writes /proc/<pid>/io.
func (p *Process) IO(rchar, writeBytes uint64) *Process {
	s := fmt.Sprintf(`rchar: %d
wchar: %d
syscr: 10
syscw: 5
read_bytes: 0
write_bytes: %d
cancelled_write_bytes: 0
`, rchar, writeBytes, writeBytes)
	p.root.write(filepath.Join(p.dir, "io"), s)
	return p
}

// Cmdline writes NUL-terminated args to /proc/<pid>/cmdline.
func (p *Process) Cmdline(args ...string) *Process {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a)
		b.WriteByte(0)
	}
	p.root.write(filepath.Join(p.dir, "cmdline"), b.String())
	return p
}

// Cwd points /proc/<pid>/cwd at dir.
func (p *Process) Cwd(dir string) *Process {
	p.root.t.Helper()
	link := filepath.Join(p.dir, "cwd")
	_ = os.Remove(link)
	if err := os.Symlink(dir, link); err != nil {
		p.root.t.Fatalf("symlink cwd: %v", err)
	}
	return p
}

// Mapping describes one smaps block.
type Mapping struct {
	Start, End   uint64 // virtual addresses
	Offset       uint64
	Path         string
	Rss          uint64 // kB
	Pss          uint64
	PrivateClean uint64
	PrivateDirty uint64
	Referenced   uint64
	Swap         uint64
}

// Smaps writes /proc/<pid>/smaps with the attribute layout of a 6.x kernel.
func (p *Process) Smaps(maps ...Mapping) *Process {
	var b strings.Builder
	for _, m := range maps {
		fmt.Fprintf(&b, "%x-%x r-xp %08x 08:01 266469                     %s\n", m.Start, m.End, m.Offset, m.Path)
		fmt.Fprintf(&b, "Size:               %d kB\n", (m.End-m.Start)/1024)
		b.WriteString("KernelPageSize:        4 kB\nMMUPageSize:           4 kB\n")
		fmt.Fprintf(&b, "Rss:                %d kB\n", m.Rss)
		fmt.Fprintf(&b, "Pss:                %d kB\n", m.Pss)
		b.WriteString("Pss_Dirty:             0 kB\n")
		fmt.Fprintf(&b, "Shared_Clean:       %d kB\n", m.Rss-min(m.Rss, m.PrivateClean+m.PrivateDirty))
		b.WriteString("Shared_Dirty:          0 kB\n")
		fmt.Fprintf(&b, "Private_Clean:      %d kB\n", m.PrivateClean)
		fmt.Fprintf(&b, "Private_Dirty:      %d kB\n", m.PrivateDirty)
		fmt.Fprintf(&b, "Referenced:         %d kB\n", m.Referenced)
		b.WriteString("Anonymous:             0 kB\nLazyFree:              0 kB\nAnonHugePages:         0 kB\n")
		b.WriteString("ShmemPmdMapped:        0 kB\nFilePmdMapped:         0 kB\nShared_Hugetlb:        0 kB\nPrivate_Hugetlb:       0 kB\n")
		fmt.Fprintf(&b, "Swap:               %d kB\n", m.Swap)
		b.WriteString("SwapPss:               0 kB\nLocked:                0 kB\nTHPeligible:    0\nVmFlags: rd ex mr mw me sd \n")
	}
	p.root.write(filepath.Join(p.dir, "smaps"), b.String())
	return p
}

// RawSmaps writes /proc/<pid>/smaps verbatim.
func (p *Process) RawSmaps(content string) *Process {
	p.root.write(filepath.Join(p.dir, "smaps"), content)
	return p
}
