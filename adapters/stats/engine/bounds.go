package engine

import (
	"math"

	"peakmotif/domain/core"
)

// SetSizeBounds returns the adaptive hit-set size window for n admitted peaks:
// at least 3 hits and 3 non-hits, widening with n by 0.1% at each end.
func SetSizeBounds(n int) (lo, hi int, err error) {
	nf := float64(n)
	lo = int(math.RoundToEven(nf * 0.001))
	if lo < 3 {
		lo = 3
	}
	hi = int(math.RoundToEven(nf * 0.999))
	if hi > n-3 {
		hi = n - 3
	}
	if lo > hi {
		return lo, hi, core.NewSetSizeBoundsError(n, lo, hi)
	}
	return lo, hi, nil
}

// ResolveBounds applies explicit overrides on top of the adaptive window. A
// zero override keeps the adaptive value.
func ResolveBounds(n, minOverride, maxOverride int) (lo, hi int, err error) {
	lo, hi, err = SetSizeBounds(n)
	if minOverride == 0 && maxOverride == 0 {
		return lo, hi, err
	}
	if minOverride > 0 {
		lo = minOverride
	}
	if maxOverride > 0 {
		hi = maxOverride
	}
	if lo > hi {
		return lo, hi, core.NewSetSizeBoundsError(n, lo, hi)
	}
	return lo, hi, nil
}
