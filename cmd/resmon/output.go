//go:build linux

package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ja7ad/resmon/pkg/summary"
	"github.com/ja7ad/resmon/pkg/system/util"
	"github.com/ja7ad/resmon/pkg/types"
)

type pidInfo struct {
	PID  int
	Name string
}

// row is one tick as displayed and written to files.
type row struct {
	At           time.Time `json:"time"`
	Processes    int       `json:"processes"`
	CPUSec       float64   `json:"cpu_sec"`
	Cores        float64   `json:"cores"`
	VirtualMB    uint64    `json:"virtual_mb"`
	ResidentMB   uint64    `json:"resident_mb"`
	SwapMB       uint64    `json:"swap_mb"`
	ReadBytes    uint64    `json:"read_bytes"`
	WriteBytes   uint64    `json:"write_bytes"`
	WorkdirFiles int64     `json:"workdir_files"`
	WorkdirBytes int64     `json:"workdir_bytes"`
	FSBytes      uint64    `json:"fs_bytes"`
	IntervalSec  float64   `json:"interval_sec"`

	exited bool
}

var csvHeader = []string{
	"time", "processes", "cpu_sec", "cores", "virtual_mb", "resident_mb", "swap_mb",
	"read_bytes", "write_bytes", "workdir_files", "workdir_bytes", "fs_bytes", "interval_sec",
}

func (r row) csv() []string {
	return []string{
		r.At.Format(time.RFC3339),
		strconv.Itoa(r.Processes),
		util.FmtFloat(r.CPUSec), util.FmtFloat(r.Cores),
		strconv.FormatUint(r.VirtualMB, 10),
		strconv.FormatUint(r.ResidentMB, 10),
		strconv.FormatUint(r.SwapMB, 10),
		strconv.FormatUint(r.ReadBytes, 10),
		strconv.FormatUint(r.WriteBytes, 10),
		strconv.FormatInt(r.WorkdirFiles, 10),
		strconv.FormatInt(r.WorkdirBytes, 10),
		strconv.FormatUint(r.FSBytes, 10),
		util.FmtFloat(r.IntervalSec),
	}
}

// outputs fans rows out to stdout and the optional files.
type outputs struct {
	pretty bool
	tw     *tabwriter.Writer

	csvF  *os.File
	csvW  *csv.Writer
	jsonF *os.File
	yamlF *os.File
	htmlF *os.File

	writeN int
	rows   []row
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func openOutputs(o opts) (*outputs, error) {
	out := &outputs{pretty: o.pretty}
	var err error

	if o.csvPath != "" {
		if out.csvF, err = create(o.csvPath); err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		out.csvW = csv.NewWriter(out.csvF)
		_ = out.csvW.Write(csvHeader)
		out.csvW.Flush()
	}
	if o.jsonPath != "" {
		if out.jsonF, err = create(o.jsonPath); err != nil {
			out.close()
			return nil, fmt.Errorf("json: %w", err)
		}
		_, _ = out.jsonF.WriteString("[\n")
	}
	if o.yamlPath != "" {
		if out.yamlF, err = create(o.yamlPath); err != nil {
			out.close()
			return nil, fmt.Errorf("yaml: %w", err)
		}
	}
	if o.htmlPath != "" {
		if out.htmlF, err = create(o.htmlPath); err != nil {
			out.close()
			return nil, fmt.Errorf("html: %w", err)
		}
	}

	if out.pretty {
		out.tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		printTableHeader(out.tw)
	} else {
		fmt.Println("# time, procs, cores, virt(MB), rss(MB), swap(MB), read, write, wd files, wd size, fs used")
	}
	return out, nil
}

func (out *outputs) row(r row) {
	out.rows = append(out.rows, r)

	if out.pretty {
		printTableRow(out.tw, r)
	} else {
		fmt.Printf("%s, %d, %.2f, %d, %d, %d, %d, %d, %d, %d, %d\n",
			r.At.Format(time.RFC3339), r.Processes, r.Cores, r.VirtualMB, r.ResidentMB, r.SwapMB,
			r.ReadBytes, r.WriteBytes, r.WorkdirFiles, r.WorkdirBytes, r.FSBytes)
	}

	if out.csvW != nil {
		_ = out.csvW.Write(r.csv())
		out.csvW.Flush()
	}
	if out.jsonF != nil {
		b, _ := json.MarshalIndent(r, "  ", "  ")
		if out.writeN > 0 {
			_, _ = out.jsonF.WriteString(",\n")
		}
		_, _ = out.jsonF.WriteString("  ")
		_, _ = out.jsonF.Write(b)
		out.writeN++
	}
}

// finish writes the summary to the files that carry one.
func (out *outputs) finish(s *summary.Summary, names map[int]string) {
	if out.jsonF != nil {
		_, _ = out.jsonF.WriteString("\n]\n")
	}
	if out.yamlF != nil {
		enc := yaml.NewEncoder(out.yamlF)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			slog.Error("write yaml", "err", err)
		}
		_ = enc.Close()
	}
	if out.htmlF != nil {
		if err := writeHTML(out.htmlF, out.rows, s, names); err != nil {
			slog.Error("write html", "err", err)
		}
	}
}

func (out *outputs) close() {
	if out.csvW != nil {
		out.csvW.Flush()
	}
	for _, f := range []*os.File{out.csvF, out.jsonF, out.yamlF, out.htmlF} {
		if f != nil {
			_ = f.Close()
		}
	}
}

func printTableHeader(tw *tabwriter.Writer) {
	fmt.Fprintln(tw, "TIME\tPROCS\tCORES\tVIRT (MB)\tRSS (MB)\tSWAP (MB)\tREAD\tWRITE\tWD FILES\tWD SIZE\tFS USED")
	fmt.Fprintln(tw, "----\t-----\t-----\t---------\t--------\t---------\t----\t-----\t--------\t-------\t-------")
	tw.Flush()
}

func printTableRow(tw *tabwriter.Writer, r row) {
	fmt.Fprintf(tw, "%s\t%d\t%.2f\t%d\t%d\t%d\t%s\t%s\t%d\t%s\t%s\n",
		r.At.Format("2006-01-02 15:04:05"), r.Processes, r.Cores,
		r.VirtualMB, r.ResidentMB, r.SwapMB,
		types.Bytes(r.ReadBytes).Humanized(), types.Bytes(r.WriteBytes).Humanized(),
		r.WorkdirFiles, types.Bytes(max(r.WorkdirBytes, 0)).Humanized(),
		types.Bytes(r.FSBytes).Humanized(),
	)
	tw.Flush()
}

// printSummary writes the summary fields as an aligned name/value list.
func printSummary(w io.Writer, s *summary.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if s.Command != "" {
		fmt.Fprintf(tw, "- command:\t%s\n", s.Command)
	}
	for _, f := range s.Fields() {
		unit := f.Unit
		if f.Value == "-" {
			unit = ""
		}
		fmt.Fprintf(tw, "- %s:\t%s %s\n", f.Name, f.Value, unit)
	}
	tw.Flush()
}

func writeHTML(f *os.File, rows []row, s *summary.Summary, names map[int]string) error {
	type view struct {
		Rows    []row
		Summary []summary.Field
		Command string
		PIDs    []pidInfo
	}

	var pidList []pidInfo
	for pid, name := range names {
		pidList = append(pidList, pidInfo{PID: pid, Name: name})
	}
	slices.SortFunc(pidList, func(a, b pidInfo) int { return a.PID - b.PID })

	var buf bytes.Buffer
	data := view{
		Rows:    rows,
		Summary: s.Fields(),
		Command: s.Command,
		PIDs:    pidList,
	}
	if err := tpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err := f.Write(buf.Bytes())
	return err
}

var tpl = template.Must(template.New("rep").Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>resmon report</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
ul{margin:6px 0 14px;padding-left:20px}
.small{color:#555}
.badge{display:inline-block;background:#eef;border:1px solid #ccd;padding:2px 6px;border-radius:6px;margin-right:6px;}
</style>

<h1>resmon report</h1>

<p class="small">Rows: {{len .Rows}}{{if .Command}} &nbsp;|&nbsp; {{.Command}}{{end}}</p>

{{if .PIDs}}
<h2>Processes</h2>
<ul>
{{range .PIDs}}
  <li><span class="badge">PID {{.PID}}</span> {{.Name}}</li>
{{end}}
</ul>
{{end}}

<h2>Summary</h2>
<ul>
{{range .Summary}}
<li>{{.Name}}: {{.Value}} {{if ne .Value "-"}}{{.Unit}}{{end}}</li>
{{end}}
</ul>

<h2>Per-tick</h2>
<table>
<thead>
<tr>
<th>time</th><th>procs</th><th>cores</th><th>virt MB</th><th>rss MB</th><th>swap MB</th>
<th>read B</th><th>write B</th><th>wd files</th><th>wd B</th><th>fs B</th>
</tr>
</thead>
<tbody>
{{range .Rows}}
<tr>
<td style="text-align:left">{{.At.Format "2006-01-02 15:04:05"}}</td>
<td>{{.Processes}}</td>
<td>{{printf "%.2f" .Cores}}</td>
<td>{{.VirtualMB}}</td>
<td>{{.ResidentMB}}</td>
<td>{{.SwapMB}}</td>
<td>{{.ReadBytes}}</td>
<td>{{.WriteBytes}}</td>
<td>{{.WorkdirFiles}}</td>
<td>{{.WorkdirBytes}}</td>
<td>{{.FSBytes}}</td>
</tr>
{{end}}
</tbody>
</table>
</html>`))
