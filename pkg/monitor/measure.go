//go:build linux

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ja7ad/resmon/pkg/summary"
)

// MeasureProcess summarizes pid over its whole lifetime: CPU and I/O are
// the cumulative counters, everything the process consumed since it
// started. The working directory is scanned without a time limit. The
// process need not be tracked.
func (m *Monitor) MeasureProcess(ctx context.Context, pid int) (*summary.Summary, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrInvalidPID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := NewProcessEntry(pid)
	s, err := e.Poll(m.fs)
	if Gone(err) {
		return nil, err
	}
	if err != nil {
		m.log.Debug("partial process sample", "pid", pid, "err", err)
	}

	measured := 0
	if s.groups > 0 {
		measured = 1
	}
	in := summary.Input{
		Start: s.Start,
		End:   time.Now(),
		Usage: summary.Usage{
			Tracked:      1,
			Measured:     measured,
			CPUTime:      s.CPUTime,
			VirtualMB:    s.Memory.Virtual,
			ResidentMB:   s.Memory.Resident,
			BytesRead:    s.CharsRead,
			BytesWritten: s.BytesWritten,
		},
	}
	if in.Start.IsZero() {
		in.Start = in.End
	}

	if cmd, err := m.fs.CommandLine(pid); err == nil {
		in.Command = cmd
	}
	if cwd, err := m.fs.Cwd(pid); err == nil {
		res, _, err := m.cfg.Scanner.Scan(ctx, cwd, nil, 0)
		switch {
		case err == nil:
			in.WorkDir = &summary.WorkDir{Files: res.Files, Bytes: res.Bytes}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			m.log.Debug("cwd scan failed", "pid", pid, "cwd", cwd, "err", err)
		}
	}
	return summary.Build(in), nil
}

// MeasureProcessUpdateToPeak measures pid and folds the result into dst as
// a running peak.
func (m *Monitor) MeasureProcessUpdateToPeak(ctx context.Context, dst *summary.Summary, pid int) error {
	s, err := m.MeasureProcess(ctx, pid)
	if err != nil {
		return err
	}
	summary.MergeMax(dst, s)
	return nil
}
