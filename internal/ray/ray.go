// Package ray provides fixed-point integer arithmetic on the protocol's
// 10^27 "ray" scale. Every amount in this package is a non-negative
// arbitrary-precision integer; floating point is never used because token
// amounts exceed 2^53 and ray-scale products exceed 2^90.
package ray

import (
	"fmt"
	"math/big"
)

// Decimals is the number of decimal places of the ray scale.
const Decimals = 27

// One is the ray unit, 10^27. Treat as read-only.
var One = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// MulDiv computes (amount * factor) / One with truncating integer division.
// Both operands must be non-negative.
func MulDiv(amount, factor *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, factor)
	return out.Quo(out, One)
}

// Accrued computes the interest earned by a scaled balance over an index
// move: (scaled * (indexAfter - indexBefore)) / One. The result is negative
// when the index regressed; callers decide whether to clamp or reject.
func Accrued(scaled, indexBefore, indexAfter *big.Int) *big.Int {
	delta := new(big.Int).Sub(indexAfter, indexBefore)
	neg := delta.Sign() < 0
	if neg {
		delta.Neg(delta)
	}
	out := MulDiv(scaled, delta)
	if neg {
		out.Neg(out)
	}
	return out
}

// Parse converts a decimal-string amount into a big integer. This is the
// single entry point for amounts crossing the process boundary; anything
// that is not a plain base-10 integer is rejected.
func Parse(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("non-numeric amount %q", s)
	}
	return v, nil
}

// ParseUnsigned is Parse restricted to non-negative amounts.
func ParseUnsigned(s string) (*big.Int, error) {
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// Format renders an amount as the decimal string used on the wire. A nil
// amount renders as "0".
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
