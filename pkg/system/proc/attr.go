package proc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxLineLength is the longest record line the attribute parser accepts.
const MaxLineLength = 4094

// Record is a line-oriented /proc record ("Label: value unit" lines).
//
// IntAttribute either rewinds before scanning, to read independent
// attributes in any order, or continues from the current read position,
// which is how the repeated per-mapping blocks of smaps are consumed.
type Record struct {
	src io.ReadSeeker
	br  *bufio.Reader
}

// NewRecord wraps src. The read position starts wherever src currently is.
func NewRecord(src io.ReadSeeker) *Record {
	return &Record{src: src, br: bufio.NewReaderSize(src, MaxLineLength+2)}
}

// Rewind moves the read position back to the start of the record.
func (r *Record) Rewind() error {
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.br.Reset(r.src)
	return nil
}

// ReadLine returns the next line without its newline. A line longer than
// MaxLineLength is consumed entirely and returned truncated together with
// ErrLineTooLong. io.EOF is returned once the record is exhausted.
func (r *Record) ReadLine() (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, isPrefix, err := r.br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong) {
				break
			}
			return "", err
		}
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > MaxLineLength {
				buf = buf[:MaxLineLength]
				tooLong = true
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return string(buf), ErrLineTooLong
	}
	return string(buf), nil
}

// IntAttribute returns the unsigned integer following the first line whose
// prefix is exactly label, e.g. "VmHWM:" on "VmHWM:	  1234 kB" yields 1234.
func (r *Record) IntAttribute(label string, rewind bool) (uint64, error) {
	if rewind {
		if err := r.Rewind(); err != nil {
			return 0, err
		}
	}
	for {
		line, err := r.ReadLine()
		switch {
		case errors.Is(err, io.EOF):
			return 0, fmt.Errorf("%q: %w", label, ErrAttrNotFound)
		case err != nil && !errors.Is(err, ErrLineTooLong):
			return 0, err
		}
		if !strings.HasPrefix(line, label) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%q: %w", label, err)
		}
		return attrValue(line, label)
	}
}

func attrValue(line, label string) (uint64, error) {
	fs := strings.Fields(line)
	if len(fs) < 2 {
		return 0, fmt.Errorf("%q: missing value: %w", label, ErrMalformed)
	}
	v, err := strconv.ParseUint(fs[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %v: %w", label, err, ErrMalformed)
	}
	return v, nil
}
