package proc

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusSample = `Name:	bash
VmPeak:	   10240 kB
VmSize:	   10000 kB
VmHWM:	    2048 kB
VmRSS:	    2000 kB
`

func TestRecord_IntAttribute_Rewind(t *testing.T) {
	rec := NewRecord(strings.NewReader(statusSample))

	v, err := rec.IntAttribute("VmHWM:", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), v)

	// earlier line is still found after rewinding
	v, err = rec.IntAttribute("VmPeak:", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(10240), v)
}

func TestRecord_IntAttribute_NoRewindIsSequential(t *testing.T) {
	rec := NewRecord(strings.NewReader(statusSample))

	_, err := rec.IntAttribute("VmHWM:", false)
	require.NoError(t, err)

	// VmPeak precedes VmHWM and is not seen again without rewinding
	_, err = rec.IntAttribute("VmPeak:", false)
	require.ErrorIs(t, err, ErrAttrNotFound)
}

func TestRecord_IntAttribute_PrefixMustMatchExactly(t *testing.T) {
	rec := NewRecord(strings.NewReader("Pss_Dirty: 7 kB\nPss: 3 kB\nSwapPss: 1 kB\nSwap: 9 kB\n"))

	v, err := rec.IntAttribute("Pss:", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	v, err = rec.IntAttribute("Swap:", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)
}

func TestRecord_IntAttribute_NotFound(t *testing.T) {
	rec := NewRecord(strings.NewReader(statusSample))
	_, err := rec.IntAttribute("VmSwap:", true)
	require.ErrorIs(t, err, ErrAttrNotFound)
	assert.False(t, errors.Is(err, ErrLineTooLong))
}

func TestRecord_IntAttribute_EmptyRecord(t *testing.T) {
	rec := NewRecord(strings.NewReader(""))
	_, err := rec.IntAttribute("Rss:", true)
	require.ErrorIs(t, err, ErrAttrNotFound)
}

func TestRecord_IntAttribute_LineTooLong(t *testing.T) {
	long := "Rss: 12 " + strings.Repeat("x", MaxLineLength+10) + "\n"
	rec := NewRecord(strings.NewReader(long))
	_, err := rec.IntAttribute("Rss:", true)
	require.ErrorIs(t, err, ErrLineTooLong)
	assert.False(t, errors.Is(err, ErrAttrNotFound))
}

func TestRecord_IntAttribute_LongNonMatchingLineIsSkipped(t *testing.T) {
	in := strings.Repeat("y", 3*MaxLineLength) + "\nRss: 12 kB\n"
	rec := NewRecord(strings.NewReader(in))
	v, err := rec.IntAttribute("Rss:", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), v)
}

func TestRecord_IntAttribute_Malformed(t *testing.T) {
	t.Run("missing_value", func(t *testing.T) {
		rec := NewRecord(strings.NewReader("Rss:\n"))
		_, err := rec.IntAttribute("Rss:", true)
		require.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("not_a_number", func(t *testing.T) {
		rec := NewRecord(strings.NewReader("Rss: lots kB\n"))
		_, err := rec.IntAttribute("Rss:", true)
		require.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("negative", func(t *testing.T) {
		rec := NewRecord(strings.NewReader("Rss: -4 kB\n"))
		_, err := rec.IntAttribute("Rss:", true)
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestRecord_ReadLine_LastLineWithoutNewline(t *testing.T) {
	rec := NewRecord(strings.NewReader("a\nb"))
	l, err := rec.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "a", l)
	l, err = rec.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "b", l)
	_, err = rec.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}
