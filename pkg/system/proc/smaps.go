//go:build linux

package proc

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// AnonPrefix starts the synthetic identity given to mappings without a
// backing file.
const AnonPrefix = "[anon]"

// Segment is one mapping of /proc/<pid>/smaps.
//
// Start and End are file offsets, not virtual addresses: the same library
// mapped at different addresses in different processes compares equal.
// Counters are in kB, as reported by the kernel.
type Segment struct {
	Name  string
	Start uint64
	End   uint64

	Resident     uint64 // Rss
	Proportional uint64 // Pss
	PrivateClean uint64
	PrivateDirty uint64
	Referenced   uint64
	Swap         uint64

	// Private is the resident private memory, assuming every private page is
	// resident (exact when Swap is zero). Shared is Resident - Private.
	Private uint64
	Shared  uint64
}

// Size returns the length of the offset range in bytes.
func (s Segment) Size() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Anonymous reports whether the segment has a synthetic identity.
func (s Segment) Anonymous() bool { return strings.HasPrefix(s.Name, AnonPrefix) }

// smapsAttrs are read in the order the kernel prints them, without
// rewinding, from the lines of one mapping block only.
var smapsAttrs = []string{"Rss:", "Pss:", "Private_Clean:", "Private_Dirty:", "Referenced:", "Swap:"}

// Segments parses /proc/<pid>/smaps. If the process exits mid-read the
// segments parsed so far are returned together with the error.
func (p FS) Segments(pid int) ([]Segment, error) {
	f, err := p.open(pid, "smaps")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	segs, err := ParseSegments(pid, f)
	if err != nil {
		return segs, goneOr(pid, "smaps", err)
	}
	return segs, nil
}

// ParseSegments parses an smaps record. Mappings without an absolute path
// are named "[anon]:<pid>:<n>", n counting anonymous mappings of this
// record, so that no two anonymous regions ever share an identity.
// A mapping whose attribute block cannot be read is skipped; the mappings
// around it are unaffected.
func ParseSegments(pid int, src io.ReadSeeker) ([]Segment, error) {
	rec := NewRecord(src)

	var (
		segs  []Segment
		anon  int
		cur   *Segment
		block []string
		bad   bool // a label line of the block was too long
	)
	flush := func() {
		if cur == nil || bad {
			return
		}
		if seg, ok := blockAttributes(*cur, block); ok {
			segs = append(segs, seg)
		}
	}

	for {
		line, err := rec.ReadLine()
		switch {
		case errors.Is(err, io.EOF):
			flush()
			return segs, nil
		case errors.Is(err, ErrLineTooLong):
			if cur != nil && isAttrLine(line) {
				bad = true
			}
			continue
		case err != nil:
			return segs, err
		}

		if seg, ok := parseMapHeader(line); ok {
			flush()
			if seg.Name == "" || seg.Name[0] != '/' {
				seg.Name = fmt.Sprintf("%s:%d:%d", AnonPrefix, pid, anon)
				anon++
			}
			cur, block, bad = &seg, block[:0], false
			continue
		}
		if cur != nil {
			block = append(block, line)
		}
	}
}

func isAttrLine(line string) bool {
	for _, label := range smapsAttrs {
		if strings.HasPrefix(line, label) {
			return true
		}
	}
	return false
}

// blockAttributes fills seg from the attribute lines of its block.
func blockAttributes(seg Segment, lines []string) (Segment, bool) {
	rec := NewRecord(strings.NewReader(strings.Join(lines, "\n")))
	vals := make([]uint64, len(smapsAttrs))
	for i, label := range smapsAttrs {
		v, err := rec.IntAttribute(label, false)
		if err != nil {
			return seg, false
		}
		vals[i] = v
	}

	seg.Resident = vals[0]
	seg.Proportional = vals[1]
	seg.PrivateClean = vals[2]
	seg.PrivateDirty = vals[3]
	seg.Referenced = vals[4]
	seg.Swap = vals[5]

	// rss = private + shared - swap, and private pages may be swapped
	// out. Lacking better data, assume all private pages are resident.
	seg.Private = minU64(seg.PrivateClean+seg.PrivateDirty, seg.Resident)
	seg.Shared = seg.Resident - seg.Private
	return seg, true
}

// parseMapHeader parses
//
//	start-end                 perm offset   dev   inode  path
//	560019f25000-56001a127000 r-xp 00000000 08:01 266469 /usr/bin/vim.basic
func parseMapHeader(line string) (Segment, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Segment{}, false
	}
	lo, hi, found := strings.Cut(fields[0], "-")
	if !found {
		return Segment{}, false
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return Segment{}, false
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil || end < start {
		return Segment{}, false
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Segment{}, false
	}

	var name string
	if len(fields) >= 6 {
		name = strings.Join(fields[5:], " ")
	}
	return Segment{
		Name:  name,
		Start: offset,
		End:   end - start + offset,
	}, true
}
