package scenario

import (
	"errors"

	"github.com/holiman/uint256"

	"pairEngine/internal/fixedmath"
	"pairEngine/internal/pair"
)

var errEmptyQuote = errors.New("quote: no output for input")

// QuoteOut is the largest output the constant-product check accepts for
// amountIn at the given fee point.
func QuoteOut(amountIn, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, pair.ErrInsufficientInput
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, pair.ErrInsufficientLiquidity
	}
	inWithFee, err := fixedmath.Mul(amountIn, uint256.NewInt(uint64(pair.FeePrecision-fee)))
	if err != nil {
		return nil, err
	}
	scaledIn, err := fixedmath.Mul(reserveIn, uint256.NewInt(pair.FeePrecision))
	if err != nil {
		return nil, err
	}
	den, err := fixedmath.Add(scaledIn, inWithFee)
	if err != nil {
		return nil, err
	}
	out, err := fixedmath.MulDiv(inWithFee, reserveOut, den)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, errEmptyQuote
	}
	return out, nil
}
