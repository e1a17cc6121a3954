//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ja7ad/resmon/pkg/system/proc"
	"github.com/ja7ad/resmon/pkg/types"
)

// MemorySnapshot is the coarse memory of a process from
// /proc/<pid>/status, in MB rounded up.
type MemorySnapshot struct {
	Virtual  uint64 // VmPeak
	Resident uint64 // VmHWM
	Shared   uint64 // VmLib
	Text     uint64 // VmExe
	Data     uint64 // VmData
}

func (m *MemorySnapshot) add(o MemorySnapshot) {
	m.Virtual += o.Virtual
	m.Resident += o.Resident
	m.Shared += o.Shared
	m.Text += o.Text
	m.Data += o.Data
}

func memoryFromStatus(s proc.Status) MemorySnapshot {
	return MemorySnapshot{
		Virtual:  types.KBToMB(s.VmPeak),
		Resident: types.KBToMB(s.VmHWM),
		Shared:   types.KBToMB(s.VmLib),
		Text:     types.KBToMB(s.VmExe),
		Data:     types.KBToMB(s.VmData),
	}
}

// ProcessSample is the outcome of one poll of one process.
type ProcessSample struct {
	PID int

	CPUTime  time.Duration // cumulative
	CPUDelta time.Duration

	CharsRead    uint64 // cumulative
	BytesWritten uint64 // cumulative
	ReadDelta    uint64
	WriteDelta   uint64

	Memory MemorySnapshot
	Start  time.Time

	// First is set on the poll that established the CPU or I/O baseline.
	// Its deltas are zero.
	First bool

	// groups counts the metric groups read successfully
	groups int
}

// ProcessEntry is the polling state of one process. It is not safe for
// concurrent use; a Monitor polls each entry from one goroutine per tick.
type ProcessEntry struct {
	PID int

	cpuPrev, cpuCur     uint64 // µs
	readPrev, readCur   uint64
	writePrev, writeCur uint64
	cpuSeen, ioSeen     bool

	Memory MemorySnapshot
	Start  time.Time
}

// NewProcessEntry returns an entry with no history. Its first successful
// read of each counter group only sets the baseline: the lifetime totals a
// process accumulated before it was tracked are never reported as deltas.
func NewProcessEntry(pid int) *ProcessEntry {
	return &ProcessEntry{PID: pid}
}

// Poll reads the CPU, memory and I/O groups of the process.
//
// A group that fails to parse is reset to zero for this tick and its error
// joined into the returned error; the other groups are still reported. If
// any group finds the process gone the error matches proc.ErrProcessGone.
func (e *ProcessEntry) Poll(fs proc.FS) (ProcessSample, error) {
	var errs []error
	groups, first := 0, false

	// cpu
	cpuDelta := uint64(0)
	if cur, err := fs.CPUTime(e.PID); err != nil {
		errs = append(errs, err)
	} else {
		e.cpuPrev, e.cpuCur = e.cpuCur, cur
		if e.cpuSeen {
			cpuDelta = proc.ClampedDelta(e.cpuCur, e.cpuPrev)
		} else {
			e.cpuSeen, first = true, true
		}
		groups++
	}

	// memory
	if st, err := fs.ReadStatus(e.PID); err != nil {
		e.Memory = MemorySnapshot{}
		errs = append(errs, err)
	} else {
		e.Memory = memoryFromStatus(st)
		groups++
	}

	// io
	var readDelta, writeDelta uint64
	if rchar, wbytes, err := fs.ReadProcIO(e.PID); err != nil {
		errs = append(errs, err)
	} else {
		e.readPrev, e.readCur = e.readCur, rchar
		e.writePrev, e.writeCur = e.writeCur, wbytes
		if e.ioSeen {
			readDelta = proc.ClampedDelta(e.readCur, e.readPrev)
			writeDelta = proc.ClampedDelta(e.writeCur, e.writePrev)
		} else {
			e.ioSeen, first = true, true
		}
		groups++
	}

	if e.Start.IsZero() {
		if start, err := fs.StartTime(e.PID); err == nil {
			e.Start = start
		} else if errors.Is(err, proc.ErrProcessGone) {
			errs = append(errs, err)
		}
	}

	s := ProcessSample{
		PID:          e.PID,
		CPUTime:      time.Duration(e.cpuCur) * time.Microsecond,
		CPUDelta:     time.Duration(cpuDelta) * time.Microsecond,
		CharsRead:    e.readCur,
		BytesWritten: e.writeCur,
		ReadDelta:    readDelta,
		WriteDelta:   writeDelta,
		Memory:       e.Memory,
		Start:        e.Start,
		First:        first,
		groups:       groups,
	}
	if len(errs) == 0 {
		return s, nil
	}
	return s, fmt.Errorf("pid %d: %w", e.PID, errors.Join(errs...))
}

// Gone reports whether err from Poll means the process has exited.
func Gone(err error) bool { return errors.Is(err, proc.ErrProcessGone) }

// PollProcess polls one tracked process.
func (m *Monitor) PollProcess(ctx context.Context, pid int) (ProcessSample, error) {
	if err := ctx.Err(); err != nil {
		return ProcessSample{}, err
	}

	m.mu.Lock()
	e, ok := m.procs[pid]
	m.mu.Unlock()
	if !ok {
		return ProcessSample{}, fmt.Errorf("pid %d: %w", pid, ErrNotTracked)
	}

	m.procMu.Lock()
	defer m.procMu.Unlock()

	s, err := e.Poll(m.fs)
	if Gone(err) {
		m.log.Debug("process gone", "pid", pid)
		if m.cfg.PruneExited {
			m.dropProcess(pid)
		}
	}
	return s, err
}
