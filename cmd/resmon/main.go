//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/resmon/pkg/monitor"
	"github.com/ja7ad/resmon/pkg/system/util"
)

var (
	logLevel string
	logJSON  bool
	procRoot string
)

type opts struct {
	// sampling
	samples  int
	interval time.Duration
	budget   time.Duration
	ema      float64
	tree     bool
	maps     bool
	prune    bool
	workers  int

	workDirs []string
	fsPaths  []string

	// outputs
	pretty   bool
	csvPath  string
	jsonPath string
	yamlPath string
	htmlPath string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "resmon",
		Short: "Process tree resource usage monitor",
		Long: `resmon samples the CPU, memory, I/O and disk usage of Linux processes,
working directories and filesystems from /proc and statfs, and reports
per-tick figures and a summary of the whole run.

Examples:
  resmon watch --tree -i 1s -s 30 $(pidof make)
  resmon watch --maps --workdir /tmp/build --fs /tmp --yaml run.yaml 12345 30000..30032
  resmon measure --format json 4242`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(newLogger(logLevel, logJSON))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON instead of text")
	root.PersistentFlags().StringVar(&procRoot, "proc", "/proc", "procfs mount point")

	watch := &cobra.Command{
		Use:   "watch [PID|PID..PID]...",
		Short: "Sample processes periodically and summarize the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o, args)
		},
	}
	f := watch.Flags()
	f.IntVarP(&o.samples, "samples", "s", 5, "number of samples to collect (0 = run until Ctrl-C)")
	f.DurationVarP(&o.interval, "interval", "i", time.Second, "sampling interval (e.g. 1s, 500ms)")
	f.DurationVar(&o.budget, "budget", 100*time.Millisecond, "work directory scan time per tick, split over directories (0 = unbounded)")
	f.Float64Var(&o.ema, "ema", 0.5, "EMA alpha for the displayed cores column [0..1]")
	f.BoolVar(&o.tree, "tree", false, "also track descendants of the given PIDs, re-discovered every tick")
	f.BoolVar(&o.maps, "maps", false, "reconcile /proc/<pid>/smaps for resident memory (slower, no double counting)")
	f.BoolVar(&o.prune, "prune", true, "stop tracking processes and paths once they are gone")
	f.IntVar(&o.workers, "workers", 0, "concurrent reads per tick (0 = GOMAXPROCS)")
	f.StringSliceVar(&o.workDirs, "workdir", nil, "working directory to measure (repeatable)")
	f.StringSliceVar(&o.fsPaths, "fs", nil, "filesystem path whose consumed space is reported (repeatable)")
	f.BoolVar(&o.pretty, "pretty", true, "format output as a table instead of CSV-like lines")
	f.StringVar(&o.csvPath, "csv", "", "write per-tick rows to CSV file")
	f.StringVar(&o.jsonPath, "json", "", "write per-tick rows to JSON file")
	f.StringVar(&o.yamlPath, "yaml", "", "write the run summary to YAML file")
	f.StringVar(&o.htmlPath, "html", "", "write per-tick rows and summary to HTML file")

	root.AddCommand(watch, newMeasureCmd())

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newLogger(level string, asJSON bool) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelWarn
	}
	hopts := &slog.HandlerOptions{Level: lv}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts))
}

func run(ctx context.Context, o opts, args []string) error {
	pids, err := util.ParsePIDs(args)
	if err != nil {
		return err
	}
	if len(pids) == 0 && len(o.workDirs) == 0 && len(o.fsPaths) == 0 {
		return fmt.Errorf("nothing to monitor: give PIDs, --workdir or --fs")
	}
	if o.interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if o.budget < 0 {
		return fmt.Errorf("budget must be >= 0")
	}
	if o.ema < 0 || o.ema > 1 {
		return fmt.Errorf("ema must be in [0,1]")
	}

	host, kernel, cpus, mem := util.SystemSummary()
	fmt.Printf(_console, host, kernel, cpus, mem, time.Now().Format("2006-01-02 15:04:05"))

	m := monitor.New(&monitor.Config{
		ProcRoot:    procRoot,
		Workers:     o.workers,
		PruneExited: o.prune,
		Logger:      slog.Default(),
	})
	if err := track(m, pids, o); err != nil {
		return err
	}

	out, err := openOutputs(o)
	if err != nil {
		return err
	}
	defer out.close()

	names := util.PidNames(m.FS(), pids)
	win := monitor.NewWindow(time.Now())
	if len(pids) > 0 {
		win.Command = names[pids[0]]
	}
	cores := util.NewEMA(o.ema)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	last := time.Now()
	sampleN := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("interrupted")
			goto END

		case now := <-ticker.C:
			if o.tree {
				for _, pid := range pids {
					if _, err := m.TrackTree(pid); err != nil {
						slog.Debug("tree discovery", "pid", pid, "err", err)
					}
				}
			}

			r, err := tick(ctx, m, win, o)
			if err != nil {
				if ctx.Err() != nil {
					goto END
				}
				return err
			}
			r.At = now
			r.IntervalSec = now.Sub(last).Seconds()
			r.Cores = cores.Next(util.SafeDiv(r.CPUSec, r.IntervalSec))
			last = now
			sampleN++

			out.row(r)

			if len(pids) > 0 && r.exited {
				fmt.Println("# All PIDs exited")
				goto END
			}
			if o.samples > 0 && sampleN >= o.samples {
				goto END
			}
		}
	}

END:
	s := win.Summary(time.Now())
	out.finish(s, names)

	fmt.Println()
	fmt.Printf("resmon summary (over %d samples of ~%s):\n", sampleN, o.interval)
	printSummary(os.Stdout, s)
	return nil
}

func track(m *monitor.Monitor, pids []int, o opts) error {
	for _, pid := range pids {
		if o.tree {
			if _, err := m.TrackTree(pid); err != nil {
				return fmt.Errorf("track tree %d: %w", pid, err)
			}
			continue
		}
		if err := m.Track(pid); err != nil {
			return err
		}
	}
	for _, d := range o.workDirs {
		if err := m.TrackWorkDir(d); err != nil {
			return fmt.Errorf("workdir %q: %w", d, err)
		}
	}
	for _, p := range o.fsPaths {
		if err := m.TrackFilesystem(p); err != nil {
			return fmt.Errorf("fs %q: %w", p, err)
		}
	}
	return nil
}

// tick polls every entity kind once and folds the results into win.
func tick(ctx context.Context, m *monitor.Monitor, win *monitor.Window, o opts) (row, error) {
	var r row

	pu, err := m.PollProcesses(ctx)
	if err != nil {
		return r, err
	}
	win.AddProcesses(pu)
	if len(pu.Gone) > 0 {
		slog.Info("processes exited", "pids", pu.Gone)
	}
	r.Processes = pu.Measured
	r.exited = pu.Tracked == len(pu.Gone)
	r.CPUSec = pu.CPUDelta.Seconds()
	r.ResidentMB = pu.Memory.Resident
	r.VirtualMB = pu.Memory.Virtual
	r.ReadBytes = pu.ReadDelta
	r.WriteBytes = pu.WriteDelta

	if o.maps {
		mu, err := m.PollMaps(ctx)
		if err != nil {
			return r, err
		}
		win.AddMaps(mu)
		r.ResidentMB = mu.Resident
		r.SwapMB = mu.Swap
	}

	if len(o.workDirs) > 0 {
		wu, err := m.PollWorkDirs(ctx, o.budget)
		if err != nil {
			return r, err
		}
		win.AddWorkDirs(wu)
		r.WorkdirFiles = wu.Files
		r.WorkdirBytes = wu.Bytes
	}

	if len(o.fsPaths) > 0 {
		du, err := m.PollFilesystems(ctx)
		if err != nil {
			return r, err
		}
		win.AddFilesystems(du)
		r.FSBytes = du.Bytes
	}
	return r, nil
}

const _console = `resmon - Process Resource Usage Monitor

       Host: %s
       Kernel: %s
       CPUs: %s
       Mem: %s

Usage report as of %s:

`
