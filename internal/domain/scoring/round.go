package scoring

import (
	"math"
	"math/big"
)

// roundPrec is wide enough to hold x*100 exactly for any float64 x.
const roundPrec = 128

// integralFrom is 2^52; from here on every float64 is a whole number.
const integralFrom = 1 << 52

// Round2 rounds x to two decimals, half away from zero, using the exact
// binary value of x. 1.005 (stored as 1.00499...) rounds to 1, while 3.125
// (exact) rounds to 3.13.
func Round2(x float64) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) >= integralFrom {
		return x
	}
	neg := x < 0
	if neg {
		x = -x
	}
	f := new(big.Float).SetPrec(roundPrec).SetFloat64(x)
	f.Mul(f, big.NewFloat(100))
	f.Add(f, big.NewFloat(0.5))
	n, _ := f.Int(nil)
	hundredths, _ := new(big.Float).SetInt(n).Float64()
	r := hundredths / 100
	if neg {
		r = -r
	}
	return r
}
