//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ja7ad/resmon/pkg/monitor"
	"github.com/ja7ad/resmon/pkg/summary"
	"github.com/ja7ad/resmon/pkg/system/util"
)

func newMeasureCmd() *cobra.Command {
	var (
		format string
		peak   bool
	)
	cmd := &cobra.Command{
		Use:   "measure [PID|PID..PID]...",
		Short: "Summarize processes over their lifetime so far",
		Long: `measure reads each process once and reports what it consumed since it
started, its command line and the size of its working directory.
With --peak the summaries are merged into one field-wise maximum.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pids, err := util.ParsePIDs(args)
			if err != nil {
				return err
			}
			m := monitor.New(&monitor.Config{ProcRoot: procRoot, Logger: slog.Default()})

			var out []*summary.Summary
			if peak {
				acc := summary.Empty()
				for _, pid := range pids {
					if err := m.MeasureProcessUpdateToPeak(cmd.Context(), acc, pid); err != nil {
						if monitor.Gone(err) {
							slog.Warn("process gone", "pid", pid)
							continue
						}
						return err
					}
				}
				out = append(out, acc)
			} else {
				for _, pid := range pids {
					s, err := m.MeasureProcess(cmd.Context(), pid)
					if err != nil {
						if monitor.Gone(err) {
							slog.Warn("process gone", "pid", pid)
							continue
						}
						return err
					}
					out = append(out, s)
				}
			}
			return writeSummaries(format, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	cmd.Flags().BoolVar(&peak, "peak", false, "merge all summaries into their field-wise peak")
	return cmd
}

func writeSummaries(format string, out []*summary.Summary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	case "table":
		for i, s := range out {
			if i > 0 {
				fmt.Println()
			}
			printSummary(os.Stdout, s)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
