package pair

import (
	"errors"

	"pairEngine/internal/fixedmath"
)

// Kind classifies a pair failure. Every failure aborts the whole call.
type Kind int

const (
	KindUnknown Kind = iota
	KindInputValidation
	KindLiquidityBounds
	KindInvariantViolation
	KindOverflow
	KindPermission
	KindReentrancy
)

func (k Kind) String() string {
	switch k {
	case KindInputValidation:
		return "input_validation"
	case KindLiquidityBounds:
		return "liquidity_bounds"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindOverflow:
		return "overflow"
	case KindPermission:
		return "permission"
	case KindReentrancy:
		return "reentrancy"
	default:
		return "unknown"
	}
}

var (
	ErrIdenticalAddresses    = errors.New("pair: identical addresses")
	ErrZeroAddress           = errors.New("pair: zero address")
	ErrInsufficientOutput    = errors.New("pair: insufficient output amount")
	ErrInsufficientInput     = errors.New("pair: insufficient input amount")
	ErrInvalidTo             = errors.New("pair: invalid to")
	ErrInvalidFee            = errors.New("pair: invalid swap fee")
	ErrMissingCallee         = errors.New("pair: no callee registered for recipient")
	ErrAlreadyInitialized    = errors.New("pair: already initialized")
	ErrInsufficientLiquidity = errors.New("pair: insufficient liquidity")
	ErrInsufficientMinted    = errors.New("pair: insufficient liquidity minted")
	ErrInsufficientBurned    = errors.New("pair: insufficient liquidity burned")
	ErrInsufficientShares    = errors.New("pair: transfer amount exceeds balance")
	ErrBalanceBelowReserve   = errors.New("pair: balance below reserve")
	ErrK                     = errors.New("pair: K")
	ErrForbidden             = errors.New("pair: forbidden")
	ErrLocked                = errors.New("pair: locked")
)

// ErrOverflow is shared with fixedmath so checked arithmetic failures match errors.Is.
var ErrOverflow = fixedmath.ErrOverflow

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrIdenticalAddresses, KindInputValidation},
	{ErrZeroAddress, KindInputValidation},
	{ErrInsufficientOutput, KindInputValidation},
	{ErrInsufficientInput, KindInputValidation},
	{ErrInvalidTo, KindInputValidation},
	{ErrInvalidFee, KindInputValidation},
	{ErrMissingCallee, KindInputValidation},
	{ErrAlreadyInitialized, KindInputValidation},
	{ErrInsufficientLiquidity, KindLiquidityBounds},
	{ErrInsufficientMinted, KindLiquidityBounds},
	{ErrInsufficientBurned, KindLiquidityBounds},
	{ErrInsufficientShares, KindLiquidityBounds},
	{ErrBalanceBelowReserve, KindLiquidityBounds},
	{ErrK, KindInvariantViolation},
	{ErrOverflow, KindOverflow},
	{ErrForbidden, KindPermission},
	{ErrLocked, KindReentrancy},
}

// KindOf returns the kind of the first pair error found in err's chain.
func KindOf(err error) Kind {
	for ; err != nil; err = errors.Unwrap(err) {
		for _, k := range kinds {
			if err == k.err {
				return k.kind
			}
		}
	}
	return KindUnknown
}
