// Package summary builds the caller-facing usage record of a monitored
// process tree and merges records into running peaks.
package summary

import (
	"strconv"
	"time"

	"github.com/ja7ad/resmon/pkg/types"
)

// Unknown marks a field that was not measured. It is distinct from a
// measured zero and sorts below every measured value.
const Unknown int64 = -1

// Summary is one reporting interval of resource usage.
// Times are microseconds (since the epoch for Start and End), memory and
// footprint are MB, I/O is bytes.
type Summary struct {
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	Start    int64 `json:"start" yaml:"start"`
	End      int64 `json:"end" yaml:"end"`
	WallTime int64 `json:"wall_time" yaml:"wall_time"`
	CPUTime  int64 `json:"cpu_time" yaml:"cpu_time"`
	Cores    int64 `json:"cores" yaml:"cores"`

	MaxConcurrentProcesses int64 `json:"max_concurrent_processes" yaml:"max_concurrent_processes"`

	VirtualMemory  int64 `json:"virtual_memory" yaml:"virtual_memory"`
	ResidentMemory int64 `json:"memory" yaml:"memory"`
	SwapMemory     int64 `json:"swap_memory" yaml:"swap_memory"`

	BytesRead    int64 `json:"bytes_read" yaml:"bytes_read"`
	BytesWritten int64 `json:"bytes_written" yaml:"bytes_written"`

	WorkdirNumFiles  int64 `json:"workdir_num_files" yaml:"workdir_num_files"`
	WorkdirFootprint int64 `json:"workdir_footprint" yaml:"workdir_footprint"`

	FSNodes int64 `json:"fs_nodes" yaml:"fs_nodes"`
}

// Usage is the accumulated process-tree usage of one interval.
type Usage struct {
	// Tracked is how many processes were polled, Measured how many of them
	// produced data. Tracked > 0 with Measured == 0 means nothing could be
	// read and CPU, memory and I/O are reported as Unknown.
	Tracked  int
	Measured int

	CPUTime time.Duration

	VirtualMB  uint64
	ResidentMB uint64
	SwapMB     uint64

	BytesRead    uint64
	BytesWritten uint64
}

// WorkDir is the measured footprint of the tracked working directories.
type WorkDir struct {
	Files int64
	Bytes int64
}

// Filesystem is the consumed space of the tracked filesystems.
type Filesystem struct {
	Nodes uint64
}

// Input gathers what Build needs. WorkDir and Filesystem are optional.
type Input struct {
	Command    string
	Start      time.Time
	End        time.Time // zero means now
	Usage      Usage
	WorkDir    *WorkDir
	Filesystem *Filesystem
}

// Build turns accumulated usage into a Summary.
//
// Cores is ceil(cpu/wall). With no elapsed wall time it is Unknown rather
// than zero, since zero would claim the tree used no CPU.
func Build(in Input) *Summary {
	end := in.End
	if end.IsZero() {
		end = time.Now()
	}

	s := &Summary{
		Command:                in.Command,
		Start:                  in.Start.UnixMicro(),
		End:                    end.UnixMicro(),
		Cores:                  Unknown,
		MaxConcurrentProcesses: int64(in.Usage.Measured),
		CPUTime:                Unknown,
		VirtualMemory:          Unknown,
		ResidentMemory:         Unknown,
		SwapMemory:             Unknown,
		BytesRead:              Unknown,
		BytesWritten:           Unknown,
		WorkdirNumFiles:        Unknown,
		WorkdirFootprint:       Unknown,
		FSNodes:                Unknown,
	}
	s.WallTime = s.End - s.Start

	if in.Usage.Tracked == 0 || in.Usage.Measured > 0 {
		u := in.Usage
		s.CPUTime = u.CPUTime.Microseconds()
		s.VirtualMemory = int64(u.VirtualMB)
		s.ResidentMemory = int64(u.ResidentMB)
		s.SwapMemory = int64(u.SwapMB)
		s.BytesRead = int64(u.BytesRead)
		s.BytesWritten = int64(u.BytesWritten)

		if s.WallTime > 0 && s.CPUTime >= 0 {
			s.Cores = int64(types.DivRoundUp(uint64(s.CPUTime), uint64(s.WallTime)))
		}
	}

	if in.WorkDir != nil {
		s.WorkdirNumFiles = in.WorkDir.Files
		s.WorkdirFootprint = int64(types.Bytes(max(in.WorkDir.Bytes, 0)).CeilMB())
	}
	if in.Filesystem != nil {
		s.FSNodes = int64(in.Filesystem.Nodes)
	}
	return s
}

// Empty returns a Summary with every numeric field Unknown, the identity
// of MergeMax.
func Empty() *Summary {
	s := &Summary{}
	for _, f := range s.fields() {
		*f = Unknown
	}
	return s
}

// MergeMax folds src into dst as a running peak: every numeric field
// becomes the larger of the two, Unknown losing to any measured value.
// The command line of dst is kept unless it is empty.
func MergeMax(dst, src *Summary) {
	if dst == nil || src == nil {
		return
	}
	if dst.Command == "" {
		dst.Command = src.Command
	}
	sf := src.fields()
	for i, f := range dst.fields() {
		*f = max(*f, *sf[i])
	}
}

// MergePeak returns a new Summary that is the field-wise maximum of s and o.
func (s Summary) MergePeak(o Summary) Summary {
	out := s
	MergeMax(&out, &o)
	return out
}

func (s *Summary) fields() []*int64 {
	return []*int64{
		&s.Start, &s.End, &s.WallTime, &s.CPUTime, &s.Cores,
		&s.MaxConcurrentProcesses,
		&s.VirtualMemory, &s.ResidentMemory, &s.SwapMemory,
		&s.BytesRead, &s.BytesWritten,
		&s.WorkdirNumFiles, &s.WorkdirFootprint,
		&s.FSNodes,
	}
}

// Field is a named, formatted Summary value.
type Field struct {
	Name  string
	Unit  string
	Value string
}

// Fields lists the numeric fields in display order. Unknown values are
// rendered as "-".
func (s *Summary) Fields() []Field {
	names := []struct{ name, unit string }{
		{"start", "us"}, {"end", "us"}, {"wall_time", "us"}, {"cpu_time", "us"}, {"cores", ""},
		{"max_concurrent_processes", ""},
		{"virtual_memory", "MB"}, {"memory", "MB"}, {"swap_memory", "MB"},
		{"bytes_read", "B"}, {"bytes_written", "B"},
		{"workdir_num_files", ""}, {"workdir_footprint", "MB"},
		{"fs_nodes", ""},
	}
	vals := s.fields()
	out := make([]Field, len(names))
	for i, n := range names {
		v := "-"
		if *vals[i] != Unknown {
			v = strconv.FormatInt(*vals[i], 10)
		}
		out[i] = Field{Name: n.name, Unit: n.unit, Value: v}
	}
	return out
}
