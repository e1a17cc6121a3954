package proc

import "errors"

var (
	// ErrProcessGone indicates that the process vanished between enumeration
	// and read. Callers drop the entity for the tick; it is never fatal.
	ErrProcessGone = errors.New("proc: process gone")

	// ErrAttrNotFound indicates that no line of a record carried the requested
	// attribute label before the end of the record.
	ErrAttrNotFound = errors.New("proc: attribute not found")

	// ErrLineTooLong indicates that a record line exceeded MaxLineLength.
	// It is a hard parse failure, distinct from ErrAttrNotFound.
	ErrLineTooLong = errors.New("proc: line too long")

	// ErrMalformed indicates that a record was present but did not have the
	// expected shape (missing value token, non-numeric value).
	ErrMalformed = errors.New("proc: malformed record")

	// ErrNoStat indicates that /proc/<pid>/stat was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")

	// ErrNoUptime indicates that /proc/uptime could not be parsed.
	ErrNoUptime = errors.New("proc: no uptime")
)
