//go:build linux

package monitor

import (
	"time"

	"github.com/ja7ad/resmon/pkg/summary"
)

// Window accumulates ticks over one reporting interval. CPU and I/O deltas
// are summed, memory and process counts keep their peak. A Window is not
// safe for concurrent use.
type Window struct {
	Command string
	Start   time.Time

	usage summary.Usage

	statusResident uint64
	mapsResident   uint64
	haveMaps       bool

	wd *summary.WorkDir
	fs *summary.Filesystem
}

// NewWindow starts an interval at start.
func NewWindow(start time.Time) *Window {
	return &Window{Start: start}
}

// AddProcesses folds one process tick.
func (w *Window) AddProcesses(u ProcessUsage) {
	w.usage.Tracked = max(w.usage.Tracked, u.Tracked)
	w.usage.Measured = max(w.usage.Measured, u.Measured)
	w.usage.CPUTime += u.CPUDelta
	w.usage.BytesRead += u.ReadDelta
	w.usage.BytesWritten += u.WriteDelta
	w.usage.VirtualMB = max(w.usage.VirtualMB, u.Memory.Virtual)
	w.statusResident = max(w.statusResident, u.Memory.Resident)
}

// AddMaps folds one reconciled memory tick. Once maps were added, resident
// memory is taken from them instead of the per-process status figures.
func (w *Window) AddMaps(m MemUsage) {
	w.haveMaps = true
	w.mapsResident = max(w.mapsResident, m.Resident)
	w.usage.SwapMB = max(w.usage.SwapMB, m.Swap)
}

// AddWorkDirs records the latest work-directory figures.
func (w *Window) AddWorkDirs(u WorkDirUsage) {
	w.wd = &summary.WorkDir{Files: u.Files, Bytes: u.Bytes}
}

// AddFilesystems records the latest filesystem figures.
func (w *Window) AddFilesystems(u DiskUsage) {
	w.fs = &summary.Filesystem{Nodes: u.FreeInodes}
}

// Summary builds the summary of the interval ending at end.
func (w *Window) Summary(end time.Time) *summary.Summary {
	u := w.usage
	u.ResidentMB = w.statusResident
	if w.haveMaps {
		u.ResidentMB = w.mapsResident
	}
	return summary.Build(summary.Input{
		Command:    w.Command,
		Start:      w.Start,
		End:        end,
		Usage:      u,
		WorkDir:    w.wd,
		Filesystem: w.fs,
	})
}
