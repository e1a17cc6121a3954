//go:build linux

package monitor

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/resmon/pkg/system/proc"
	"github.com/ja7ad/resmon/pkg/types"
)

// MemUsage is the reconciled memory of a process tree, in MB rounded up.
type MemUsage struct {
	Virtual    uint64
	Resident   uint64
	Referenced uint64
	Private    uint64
	Shared     uint64
	Swap       uint64
}

// Region is a merged range of one backing identity. Counters are kB.
type Region struct {
	Name  string
	Start uint64
	End   uint64

	Virtual    uint64
	Resident   uint64
	Referenced uint64
	Private    uint64
	Shared     uint64
	Swap       uint64
}

func (r *Region) absorb(s proc.Segment) {
	r.Start = min(r.Start, s.Start)
	r.End = max(r.End, s.End)
	r.Resident += s.Resident
	r.Referenced += s.Referenced
	r.Private += s.Private
	r.Shared += s.Shared
	r.Swap += s.Swap
}

// clamp restores private <= resident <= referenced <= virtual over the
// merged range. Summing segments of several processes counts shared pages
// once per mapper; the range size is the only hard upper bound.
func (r *Region) clamp() {
	r.Virtual = types.DivRoundUp(r.End-r.Start, 1024)
	r.Referenced = min(r.Referenced, r.Virtual)
	r.Resident = min(r.Resident, r.Referenced)
	r.Private = min(r.Private, r.Resident)
	r.Shared = r.Resident - r.Private
}

// Regions groups segments by identity and merges overlapping or touching
// ranges of each identity. The result is ordered by name, then start, and
// ranges of one name never overlap.
func Regions(segs []proc.Segment) []Region {
	groups := make(map[string][]proc.Segment)
	for _, s := range segs {
		groups[s.Name] = append(groups[s.Name], s)
	}

	var out []Region
	for name, g := range groups {
		// Ordered by end descending, a segment overlaps or touches the
		// running region iff its end reaches the region's start. Every
		// later segment ends no further right, so an emitted region is
		// never revisited.
		slices.SortFunc(g, func(a, b proc.Segment) int {
			if c := cmp.Compare(b.End, a.End); c != 0 {
				return c
			}
			return cmp.Compare(b.Start, a.Start)
		})

		cur := Region{Name: name, Start: g[0].Start, End: g[0].End}
		cur.absorb(g[0])
		for _, s := range g[1:] {
			if s.End >= cur.Start {
				cur.absorb(s)
				continue
			}
			cur.clamp()
			out = append(out, cur)
			cur = Region{Name: name, Start: s.Start, End: s.End}
			cur.absorb(s)
		}
		cur.clamp()
		out = append(out, cur)
	}

	slices.SortFunc(out, func(a, b Region) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
	return out
}

// Reconcile estimates the memory of a process tree from the smaps
// segments of all its processes without counting a page twice when
// several processes map it.
func Reconcile(segs []proc.Segment) MemUsage {
	var kb Region
	for _, r := range Regions(segs) {
		kb.Virtual += r.Virtual
		kb.Resident += r.Resident
		kb.Referenced += r.Referenced
		kb.Private += r.Private
		kb.Shared += r.Shared
		kb.Swap += r.Swap
	}
	return MemUsage{
		Virtual:    types.KBToMB(kb.Virtual),
		Resident:   types.KBToMB(kb.Resident),
		Referenced: types.KBToMB(kb.Referenced),
		Private:    types.KBToMB(kb.Private),
		Shared:     types.KBToMB(kb.Shared),
		Swap:       types.KBToMB(kb.Swap),
	}
}

// PollMaps reads the smaps of every tracked process and reconciles them in
// one pass once all reads are done. A process that exits mid-read
// contributes the segments read before it went away.
func (m *Monitor) PollMaps(ctx context.Context) (MemUsage, error) {
	segs, err := m.collectSegments(ctx)
	if err != nil {
		return MemUsage{}, err
	}
	return Reconcile(segs), nil
}

func (m *Monitor) collectSegments(ctx context.Context) ([]proc.Segment, error) {
	pids := m.Tracked()

	var (
		mu  sync.Mutex
		all []proc.Segment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, pid := range pids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			segs, err := m.fs.Segments(pid)
			if err != nil {
				m.log.Debug("smaps read incomplete", "pid", pid, "segments", len(segs), "err", err)
			}
			mu.Lock()
			all = append(all, segs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}
