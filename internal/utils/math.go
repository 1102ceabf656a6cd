package utils

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// DENOMINATOR is the common denominator for ratios, fees, tolerances and gaps (100% = 100_000).
const DENOMINATOR = 100_000

// PRICE_PRECISION is the number of decimals of oracle prices.
const PRICE_PRECISION = 18

var (
	denominatorInt = sdkmath.NewInt(DENOMINATOR)
	one18          = Pow10(PRICE_PRECISION)
)

// Denominator returns DENOMINATOR as an SDK Int.
func Denominator() sdkmath.Int {
	return denominatorInt
}

// One18 returns 1e18.
func One18() sdkmath.Int {
	return one18
}

// Pow10 returns 10^n.
func Pow10(n int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil))
}

// MulDiv returns a*b/c rounded down. The intermediate product is computed on big.Int
// so it may exceed 256 bits. Division by zero returns zero.
func MulDiv(a, b, c sdkmath.Int) sdkmath.Int {
	if c.IsZero() {
		return sdkmath.ZeroInt()
	}
	p := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return sdkmath.NewIntFromBigInt(p.Quo(p, c.BigInt()))
}

// MulRatio returns amount*ratio/DENOMINATOR.
func MulRatio(amount sdkmath.Int, ratio int64) sdkmath.Int {
	return MulDiv(amount, sdkmath.NewInt(ratio), denominatorInt)
}

// AddGap returns amount*(DENOMINATOR+gap)/DENOMINATOR.
func AddGap(amount sdkmath.Int, gap int64) sdkmath.Int {
	return MulDiv(amount, sdkmath.NewInt(DENOMINATOR+gap), denominatorInt)
}

// Min3 returns the smallest of three amounts.
func Min3(a, b, c sdkmath.Int) sdkmath.Int {
	return sdkmath.MinInt(sdkmath.MinInt(a, b), c)
}

// SubFloor returns a-b, or zero when b >= a.
func SubFloor(a, b sdkmath.Int) sdkmath.Int {
	if b.GTE(a) {
		return sdkmath.ZeroInt()
	}
	return a.Sub(b)
}

// ZeroInts returns a slice of n zero amounts.
func ZeroInts(n int) []sdkmath.Int {
	out := make([]sdkmath.Int, n)
	for i := range out {
		out[i] = sdkmath.ZeroInt()
	}
	return out
}

// SumInts adds all amounts together.
func SumInts(amounts []sdkmath.Int) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, a := range amounts {
		if !a.IsNil() {
			total = total.Add(a)
		}
	}
	return total
}
