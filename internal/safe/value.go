package safe

import (
	"math"
)

// Uint64ToInt64 converts an uint64 value to int64, clamping to math.MaxInt64
// if overflow would occur. The boolean reports whether clamping occurred.
func Uint64ToInt64(val uint64) (int64, bool) {
	if val > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(val), false
}

// Displace applies a signed displacement to an address with two's
// complement wraparound, the way a CPU computes a relative target.
func Displace(addr uint64, disp int64) uint64 {
	if disp < 0 {
		return addr - uint64(-disp)
	}
	return addr + uint64(disp)
}

// Truncate keeps the low bits of an address for the given pointer width in
// bits. Widths of 64 and above return addr unchanged.
func Truncate(addr uint64, bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return addr
	}
	return addr & (1<<uint(bits) - 1)
}
