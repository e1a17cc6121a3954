//go:build linux

package proc

import (
	"fmt"
	"slices"

	"github.com/prometheus/procfs"
)

// Descendants returns root followed by every live descendant of root,
// breadth first. The parent table is built from one pass over all
// processes, so a process reparented mid-walk may be missed until the next
// call.
func (p FS) Descendants(root int) ([]int, error) {
	pfs, err := procfs.NewFS(p.root)
	if err != nil {
		return nil, fmt.Errorf("procfs %s: %w", p.root, err)
	}
	all, err := pfs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("procfs %s: list: %w", p.root, err)
	}

	children := make(map[int][]int)
	seen := false
	for _, pr := range all {
		if pr.PID == root {
			seen = true
		}
		st, err := pr.Stat()
		if err != nil {
			// exited since the listing
			continue
		}
		children[st.PPID] = append(children[st.PPID], pr.PID)
	}
	if !seen {
		return nil, fmt.Errorf("pid %d: %w", root, ErrProcessGone)
	}

	out := []int{root}
	visited := map[int]bool{root: true}
	for i := 0; i < len(out); i++ {
		kids := children[out[i]]
		slices.Sort(kids)
		for _, k := range kids {
			if !visited[k] {
				visited[k] = true
				out = append(out, k)
			}
		}
	}
	return out, nil
}
