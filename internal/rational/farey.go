// SPDX-License-Identifier: MIT
/*
Package rational finds the best rational approximation to a real number in
[0, 1] with a bounded denominator, using mediant (Farey/Stern-Brocot) search.

The naive mediant iteration is very slow when the target sits close to a
fraction with a small denominator: approximating 1e-6 would walk through
1/1, 1/2, 1/3, ... and need about 10^6 iterations. Instead, at every step the
number of consecutive narrowings that would land on the same side of the
interval is computed in closed form and all of them are applied at once,
which brings convergence down to O(log maxDenom).
*/
package rational

import "math"

// Rational is a non-negative fraction Numerator/Denominator with
// Denominator >= 1. Iterations records how many narrowing steps the search
// took and exists only for diagnostics.
type Rational struct {
	Numerator   uint32
	Denominator uint32
	Iterations  uint32
}

// Float returns the fraction as a float64.
func (r Rational) Float() float64 {
	return float64(r.Numerator) / float64(r.Denominator)
}

// maxIterations bounds the narrowing loop. The fast-forward step makes the
// search logarithmic, so this is only a guard against floating-point edge
// cases; hitting it terminates with the best fraction found so far.
const maxIterations = 100

// Approximate returns the fraction closest to target among all fractions
// with denominator <= maxDenom.
//
// Targets outside [0, 1] clamp to the boundary fractions 0/1 and 1/1, and a
// maxDenom of zero is treated as 1; neither is an error.
func Approximate(target float64, maxDenom uint32) Rational {
	if target > 1 {
		return Rational{Numerator: 1, Denominator: 1}
	}
	if target < 0 || math.IsNaN(target) {
		return Rational{Numerator: 0, Denominator: 1}
	}
	if maxDenom < 1 {
		maxDenom = 1
	}

	// Bounding fractions a/b <= target <= c/d, starting at 0/1 and 1/1.
	var a, b, c, d uint32 = 0, 1, 1, 1

	// Steps-in-a-row denominators below this are treated as zero: the
	// opposite bound is then already an excellent approximation.
	nDenomMin := 1 / (10 * float64(maxDenom))

	// To absorb rounding when flooring the step count.
	const epsilon = 1e-10

	var best Rational
	var iter uint32
	for {
		ac := a + c
		bd := b + d
		if bd > maxDenom || iter > maxIterations {
			// Denominator exhausted (or iteration guard hit): pick the
			// closer of the two bounds.
			if target-float64(a)/float64(b) < float64(c)/float64(d)-target {
				ac, bd = a, b
			} else {
				ac, bd = c, d
			}
			best = Rational{Numerator: ac, Denominator: bd, Iterations: iter}
			break
		}

		mediant := float64(ac) / float64(bd)
		if target < mediant {
			// The mediant lands above the target, so c/d is replaced.
			// N = (c - target*d)/(target*b - a) consecutive replacements
			// would all fall on this side.
			nDenom := target*float64(b) - float64(a)
			if nDenom < nDenomMin {
				// Near-zero divisor: a/b is already as good as it gets.
				best = Rational{Numerator: a, Denominator: b, Iterations: iter}
				break
			}
			n := uint32(math.Floor((float64(c)-target*float64(d))/nDenom + epsilon))
			if d+n*b > maxDenom {
				// Take only as many steps as the denominator bound allows.
				n = uint32(math.Floor(float64(maxDenom-d) / float64(b)))
			}
			c += n * a
			d += n * b
		} else {
			// Mirror case: a/b is replaced N times in a row.
			nDenom := float64(c) - target*float64(d)
			if nDenom < nDenomMin {
				best = Rational{Numerator: c, Denominator: d, Iterations: iter}
				break
			}
			n := uint32(math.Floor((target*float64(b)-float64(a))/nDenom + epsilon))
			if b+n*d > maxDenom {
				n = uint32(math.Floor(float64(maxDenom-b) / float64(d)))
			}
			a += n * c
			b += n * d
		}
		iter++
	}

	return best
}
