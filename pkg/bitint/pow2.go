// Package bitint holds the power-of-two helpers used to size FFT frames.
// Everything here is branch-light, allocation-free and constant time.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Powers of two
// map to themselves; zero and negatives map to 1. The size-1 adjustment is
// what keeps exact powers from doubling: Len(8-1)=3 gives 1<<3 = 8, while
// Len(8)=4 would give 16.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
