package core

import "golang.org/x/exp/constraints"

// CeilDiv returns x/y rounded up for non-negative x and positive y
func CeilDiv[T constraints.Integer](x, y T) T {
	q := x / y
	if x%y != 0 {
		q++
	}
	return q
}

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
