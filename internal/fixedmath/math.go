// Package fixedmath holds the integer helpers used by the pair engine.
package fixedmath

import (
	"errors"

	"github.com/holiman/uint256"
)

// Resolution is the number of fractional bits of a UQ112x112 value.
const Resolution = 112

var ErrOverflow = errors.New("fixedmath: overflow")

var (
	// Q112 is 1.0 in UQ112x112.
	Q112 = new(uint256.Int).Lsh(uint256.NewInt(1), Resolution)
	// MaxUint112 is the largest value a reserve can hold.
	MaxUint112 = new(uint256.Int).Sub(Q112, uint256.NewInt(1))
)

// Sqrt returns floor(sqrt(x)).
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int).Set(x)
	}
	return new(uint256.Int).Set(y)
}

func Max(x, y *uint256.Int) *uint256.Int {
	if x.Gt(y) {
		return new(uint256.Int).Set(x)
	}
	return new(uint256.Int).Set(y)
}

// Encode converts y into a UQ112x112. y must fit in 112 bits.
func Encode(y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Lsh(y, Resolution)
}

// UQDiv divides a UQ112x112 by a plain integer. Division by zero yields zero.
func UQDiv(x, y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(x, y)
}

// FitsUint112 reports whether x can be stored as a reserve.
func FitsUint112(x *uint256.Int) bool {
	return x.BitLen() <= Resolution
}

// Mul returns x*y or ErrOverflow.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Add returns x+y or ErrOverflow.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns x-y or ErrOverflow when y > x.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDiv returns x*y/d with an overflow check on the product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	p, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return p.Div(p, d), nil
}

// SaturatingSub returns max(0, x-y).
func SaturatingSub(x, y *uint256.Int) *uint256.Int {
	if x.Gt(y) {
		return new(uint256.Int).Sub(x, y)
	}
	return new(uint256.Int)
}
