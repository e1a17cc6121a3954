//go:build linux

package monitor

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/ja7ad/resmon/pkg/system/dirsize"
	"github.com/ja7ad/resmon/pkg/system/disk"
	"github.com/ja7ad/resmon/pkg/system/proc"
)

// DirScanner measures a directory tree in resumable, time-bounded slices.
// dirsize.Scanner is the default implementation.
type DirScanner interface {
	Scan(ctx context.Context, path string, prev *dirsize.State, budget time.Duration) (dirsize.Result, *dirsize.State, error)
}

// Config tunes a Monitor. Zero fields take defaults.
type Config struct {
	// ProcRoot is the procfs mount point. Default /proc.
	ProcRoot string
	// Workers bounds how many entities are polled at once. Default
	// GOMAXPROCS.
	Workers int
	// MinSlice is the smallest scan budget a directory receives when a
	// total budget is split. Default 1ms.
	MinSlice time.Duration
	// PruneExited drops processes and paths from the tables once they are
	// found gone. Without it they are only reported in the Gone lists.
	PruneExited bool

	Logger  *slog.Logger
	Scanner DirScanner
	// Stat queries a filesystem's free space. Default disk.Stat.
	Stat func(path string) (disk.Snapshot, error)
}

func _defaultConfig() *Config {
	return &Config{
		ProcRoot: proc.DefaultRoot,
		Workers:  runtime.GOMAXPROCS(0),
		MinSlice: time.Millisecond,
		Logger:   slog.New(slog.DiscardHandler),
		Scanner:  dirsize.Scanner{},
		Stat:     disk.Stat,
	}
}

// merge returns defaults overridden by the set fields of cfg.
func merge(cfg *Config) *Config {
	base := _defaultConfig()
	if cfg == nil {
		return base
	}

	merged := *base
	if cfg.ProcRoot != "" {
		merged.ProcRoot = cfg.ProcRoot
	}
	if cfg.Workers > 0 {
		merged.Workers = cfg.Workers
	}
	if cfg.MinSlice > 0 {
		merged.MinSlice = cfg.MinSlice
	}
	merged.PruneExited = cfg.PruneExited
	if cfg.Logger != nil {
		merged.Logger = cfg.Logger
	}
	if cfg.Scanner != nil {
		merged.Scanner = cfg.Scanner
	}
	if cfg.Stat != nil {
		merged.Stat = cfg.Stat
	}
	return &merged
}
