// Package proc provides lightweight readers for the Linux /proc records a
// resource monitor samples: CPU time, coarse memory, I/O counters, start
// time, command line and the per-mapping smaps table.
// It is designed to feed the stateful pollers of pkg/monitor.
//
// Overview
//
//   - FS: every reader hangs off an FS rooted at a procfs mount point
//     (DefaultRoot unless told otherwise). Tests point it at a fake tree built
//     with the proctest package.
//
//   - Record: the attribute parser. IntAttribute(label, rewind) returns the
//     first unsigned integer following a line whose prefix is exactly label.
//     rewind=true reads independent attributes (status, io); rewind=false
//     continues from the current position, which is how the repeated
//     per-mapping blocks of smaps are consumed in kernel order.
//
//   - Per-PID readers:
//     CPUTicks/CPUTime : stat fields 14 (utime) and 15 (stime)
//     StartTime        : stat field 22 combined with /proc/uptime and now
//     ReadStatus       : VmPeak, VmHWM, VmLib, VmExe, VmData (kB), all or nothing
//     ReadProcIO       : rchar and write_bytes
//     CommandLine, Cwd : cmdline (NULs to spaces), cwd link
//     Segments         : smaps, ranges normalized to file offsets
//     Descendants      : a pid and its live descendants (via prometheus/procfs)
//
//   - Errors (errs.go):
//     ErrProcessGone  : the pid vanished; drop it for the tick
//     ErrAttrNotFound : no line carried the label
//     ErrLineTooLong  : a matching line exceeded MaxLineLength
//     ErrMalformed, ErrNoStat, ErrShortStat, ErrNoUptime : shape mismatches
//
// # Units
//
// CPU time is converted from clock ticks (ClockTicks, CLK_TCK override) to
// microseconds. status and smaps figures stay in kB; converting to MB, with
// round-up, is left to the caller so sums are not rounded per process.
//
// # Caveats
//
//   - comm (stat field 2) may contain spaces and parens, so stat is split at
//     the last ") ".
//   - /proc/<pid>/io is not readable for other users' processes; that is a
//     read failure, not ErrProcessGone.
//   - Segment.Private assumes every private page is resident. It is exact only
//     when Swap is zero.
package proc
