package aggregate

import (
	"math/big"
	"strings"
)

const (
	ratioScale  = 18
	yearSeconds = 365 * 24 * 60 * 60
)

// formatTokenAmount renders a raw amount with exactly decimals fractional digits.
func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(value), unit, new(big.Int))
	digits := frac.String()
	digits = strings.Repeat("0", int(decimals)-len(digits)) + digits

	text := whole.String() + "." + digits
	if value.Sign() < 0 {
		return "-" + text
	}
	return text
}

// feeRate is fee over the reserve of the same token, nil when either is zero.
func feeRate(fee, reserve *big.Int) *big.Rat {
	if fee == nil || fee.Sign() == 0 || reserve == nil || reserve.Sign() == 0 {
		return nil
	}
	return new(big.Rat).SetFrac(fee, reserve)
}

func ratString(r *big.Rat) *string {
	if r == nil {
		return nil
	}
	s := r.FloatString(ratioScale)
	return &s
}

// windowAPR annualizes the pair's yield for one window. Both sides of a pair
// hold equal value at the reserve price, so the yield is the mean of the two
// side rates, a missing side counting as zero.
func windowAPR(rate0, rate1 *big.Rat, windowSeconds uint64) *big.Rat {
	if windowSeconds == 0 || (rate0 == nil && rate1 == nil) {
		return nil
	}
	yield := new(big.Rat)
	for _, r := range []*big.Rat{rate0, rate1} {
		if r != nil {
			yield.Add(yield, r)
		}
	}
	yield.Quo(yield, big.NewRat(2, 1))
	return yield.Mul(yield, big.NewRat(yearSeconds, int64(windowSeconds)))
}
