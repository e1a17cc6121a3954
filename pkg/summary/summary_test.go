package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1_700_000_000, 0)

func TestBuild_CoresIsCeilOfCPUOverWall(t *testing.T) {
	s := Build(Input{
		Start: t0,
		End:   t0.Add(time.Second),
		Usage: Usage{Tracked: 1, Measured: 1, CPUTime: 500 * time.Millisecond},
	})
	assert.Equal(t, int64(1_000_000), s.WallTime)
	assert.Equal(t, int64(500_000), s.CPUTime)
	assert.Equal(t, int64(1), s.Cores)

	s = Build(Input{
		Start: t0,
		End:   t0.Add(time.Second),
		Usage: Usage{Tracked: 3, Measured: 3, CPUTime: 2100 * time.Millisecond},
	})
	assert.Equal(t, int64(3), s.Cores)
}

func TestBuild_ZeroWallTimeIsUnknownCores(t *testing.T) {
	s := Build(Input{Start: t0, End: t0, Usage: Usage{Tracked: 1, Measured: 1, CPUTime: time.Second}})
	assert.Equal(t, int64(0), s.WallTime)
	assert.Equal(t, Unknown, s.Cores)
}

func TestBuild_IdleTreeIsMeasuredZero(t *testing.T) {
	s := Build(Input{Start: t0, End: t0.Add(time.Second), Usage: Usage{Tracked: 1, Measured: 1}})
	assert.Equal(t, int64(0), s.Cores)
	assert.Equal(t, int64(0), s.CPUTime)
}

func TestBuild_OptionalPartsAreUnknown(t *testing.T) {
	s := Build(Input{Start: t0, End: t0.Add(time.Second)})
	assert.Equal(t, Unknown, s.WorkdirNumFiles)
	assert.Equal(t, Unknown, s.WorkdirFootprint)
	assert.Equal(t, Unknown, s.FSNodes)
	// an empty tree is a measured zero
	assert.Equal(t, int64(0), s.ResidentMemory)
	assert.Equal(t, int64(0), s.MaxConcurrentProcesses)
}

func TestBuild_WorkDirAndFilesystem(t *testing.T) {
	s := Build(Input{
		Start:      t0,
		End:        t0.Add(time.Second),
		WorkDir:    &WorkDir{Files: 12, Bytes: 1<<20 + 1},
		Filesystem: &Filesystem{Nodes: 7},
	})
	assert.Equal(t, int64(12), s.WorkdirNumFiles)
	assert.Equal(t, int64(2), s.WorkdirFootprint, "partial MB rounds up")
	assert.Equal(t, int64(7), s.FSNodes)
}

func TestBuild_NothingReadableDegradesToUnknown(t *testing.T) {
	s := Build(Input{Start: t0, End: t0.Add(time.Second), Usage: Usage{Tracked: 4, Measured: 0}})
	assert.Equal(t, Unknown, s.CPUTime)
	assert.Equal(t, Unknown, s.Cores)
	assert.Equal(t, Unknown, s.ResidentMemory)
	assert.Equal(t, Unknown, s.VirtualMemory)
	assert.Equal(t, Unknown, s.BytesRead)
	assert.Equal(t, int64(1_000_000), s.WallTime)
}

func TestBuild_DefaultsEndToNow(t *testing.T) {
	start := time.Now().Add(-time.Second)
	s := Build(Input{Start: start})
	assert.InDelta(t, float64(time.Second.Microseconds()), float64(s.WallTime), float64(time.Second.Microseconds()))
}

func sample(v int64) Summary {
	return Summary{
		Start: v, End: v, WallTime: v, CPUTime: v, Cores: v,
		MaxConcurrentProcesses: v,
		VirtualMemory:          v, ResidentMemory: v, SwapMemory: v,
		BytesRead: v, BytesWritten: v,
		WorkdirNumFiles: v, WorkdirFootprint: v,
		FSNodes: v,
	}
}

func TestMergeMax_Dominates(t *testing.T) {
	a := sample(3)
	a.ResidentMemory = 100
	a.Cores = Unknown
	b := sample(5)
	b.ResidentMemory = 40
	b.FSNodes = Unknown

	m := a.MergePeak(b)
	for i, f := range m.fields() {
		assert.GreaterOrEqual(t, *f, *a.fields()[i], "field %d", i)
		assert.GreaterOrEqual(t, *f, *b.fields()[i], "field %d", i)
	}
	assert.Equal(t, int64(100), m.ResidentMemory)
	assert.Equal(t, int64(5), m.Cores)
	assert.Equal(t, int64(5), m.FSNodes)
}

func TestMergeMax_Idempotent(t *testing.T) {
	a := sample(9)
	a.Command = "make -j8"
	a.SwapMemory = Unknown
	assert.Equal(t, a, a.MergePeak(a))
}

func TestMergeMax_KnownOverridesUnknown(t *testing.T) {
	dst := sample(Unknown)
	src := sample(0)
	MergeMax(&dst, &src)
	assert.Equal(t, sample(0), dst)
}

func TestMergeMax_CommandKeepsFirst(t *testing.T) {
	dst := Summary{}
	MergeMax(&dst, &Summary{Command: "a"})
	MergeMax(&dst, &Summary{Command: "b"})
	assert.Equal(t, "a", dst.Command)
}

func TestMergeMax_NilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		MergeMax(nil, &Summary{})
		MergeMax(&Summary{}, nil)
	})
}

func TestFields_UnknownRendersDash(t *testing.T) {
	s := sample(Unknown)
	s.Cores = 2
	for _, f := range s.Fields() {
		if f.Name == "cores" {
			assert.Equal(t, "2", f.Value)
			continue
		}
		assert.Equal(t, "-", f.Value, f.Name)
	}
}

func TestSummary_JSONNames(t *testing.T) {
	b, err := json.Marshal(Summary{Command: "x", ResidentMemory: 3})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.EqualValues(t, 3, m["memory"])
	assert.Equal(t, "x", m["command"])
	assert.Contains(t, m, "fs_nodes")
	assert.Len(t, m, len((&Summary{}).Fields())+1)
}

func TestEmpty_IsMergeIdentity(t *testing.T) {
	src := sample(4)
	src.Command = "ld"
	dst := Empty()
	MergeMax(dst, &src)
	assert.Equal(t, src, *dst)
	assert.Equal(t, sample(Unknown), *Empty())
}
