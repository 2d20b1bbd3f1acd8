package mathutil

import (
	"math"
	"math/bits"
)

// Scale returns val*num/denom without intermediate overflow, truncating toward zero.
// It saturates at math.MaxUint64 when the result does not fit.
func Scale(val, num, denom uint64) uint64 {
	if denom == 0 {
		panic("division by zero")
	}
	hi, lo := bits.Mul64(val, num)
	if hi >= denom {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, denom)
	return q
}

// ScaleCeil is Scale rounding up.
func ScaleCeil(val, num, denom uint64) uint64 {
	if denom == 0 {
		panic("division by zero")
	}
	hi, lo := bits.Mul64(val, num)
	if hi >= denom {
		return math.MaxUint64
	}
	q, r := bits.Div64(hi, lo, denom)
	if r != 0 && q < math.MaxUint64 {
		q++
	}
	return q
}
