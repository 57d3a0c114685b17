package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OrDefault returns d when v is the zero value or negative.
func OrDefault[T constraints.Integer | constraints.Float](v, d T) T {
	if v <= 0 {
		return d
	}
	return v
}

// Mean divides the sum of xs by div (not by len(xs)). div <= 0 yields 0.
func Mean[T constraints.Integer | constraints.Float](xs []T, div int) float64 {
	if div <= 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	return sum / float64(div)
}
