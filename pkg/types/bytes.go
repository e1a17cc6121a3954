package types

import "fmt"

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// CeilMB returns the size in whole megabytes, rounding any partial megabyte up.
func (b Bytes) CeilMB() uint64 { return DivRoundUp(uint64(b), 1<<20) }

// DivRoundUp divides a by b rounding up. A zero divisor yields zero.
func DivRoundUp(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// KBToMB converts a kB count to MB, rounding up so that a partially
// filled megabyte is never reported as zero.
func KBToMB(kb uint64) uint64 { return DivRoundUp(kb, 1024) }
