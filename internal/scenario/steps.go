package scenario

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pairEngine/internal/fixedmath"
	"pairEngine/internal/ledger"
	"pairEngine/internal/pair"
)

type action func(r *Runner, step Step) error

var actions = map[string]action{
	"mint_token":              (*Runner).mintToken,
	"transfer":                (*Runner).transfer,
	"add_liquidity":           (*Runner).addLiquidity,
	"remove_liquidity":        (*Runner).removeLiquidity,
	"transfer_shares":         (*Runner).transferShares,
	"swap":                    (*Runner).swap,
	"swap_for0":               (*Runner).swapFor0,
	"swap_for1":               (*Runner).swapFor1,
	"flash_swap":              (*Runner).flashSwap,
	"skim":                    (*Runner).skim,
	"sync":                    (*Runner).sync,
	"advance":                 (*Runner).advance,
	"set_fee_to":              (*Runner).setFeeTo,
	"set_swap_fee":            (*Runner).setSwapFee,
	"set_protocol_fee_factor": (*Runner).setProtocolFeeFactor,
	"set_fee_override":        (*Runner).setFeeOverride,
}

// flashData is passed to the pair so it calls the borrower back.
var flashData = []byte("flash")

func (r *Runner) mintToken(s Step) error {
	tok, err := r.token(s.Token)
	if err != nil {
		return err
	}
	to, err := r.resolve(s.To)
	if err != nil {
		return err
	}
	amount, err := parseAmount(s.Amount)
	if err != nil {
		return err
	}
	return tok.Mint(to, amount)
}

func (r *Runner) transfer(s Step) error {
	tok, err := r.token(s.Token)
	if err != nil {
		return err
	}
	from, to, err := r.fromTo(s)
	if err != nil {
		return err
	}
	amount, err := parseAmount(s.Amount)
	if err != nil {
		return err
	}
	return tok.Transfer(from, to, amount)
}

// addLiquidity sends both amounts to the pair and mints shares to To, or
// From when To is empty.
func (r *Runner) addLiquidity(s Step) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	from, to, err := r.fromTo(s)
	if err != nil {
		return err
	}
	if len(s.Amounts) == 0 {
		return fmt.Errorf("add_liquidity needs amounts")
	}
	for symbol, value := range s.Amounts {
		tok, err := r.token(symbol)
		if err != nil {
			return err
		}
		if tok.Address() != p.Token0() && tok.Address() != p.Token1() {
			return fmt.Errorf("token %s is not in pair %s", symbol, s.Pair)
		}
		amount, err := parseAmount(value)
		if err != nil {
			return err
		}
		if err := tok.Transfer(from, p.Address(), amount); err != nil {
			return err
		}
	}
	_, err = p.Mint(from, to)
	return err
}

// removeLiquidity returns Amount shares, or "all" of From's shares, and
// burns them.
func (r *Runner) removeLiquidity(s Step) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	from, to, err := r.fromTo(s)
	if err != nil {
		return err
	}
	shares := p.BalanceOf(from)
	if s.Amount != "all" {
		if shares, err = parseAmount(s.Amount); err != nil {
			return err
		}
	}
	if err := p.Transfer(from, p.Address(), shares); err != nil {
		return err
	}
	if _, _, err := p.Burn(from, to); err != nil {
		// The shares moved in a call of their own; hand them back.
		if back := p.Transfer(p.Address(), from, shares); back != nil {
			return fmt.Errorf("%w (returning shares: %v)", err, back)
		}
		return err
	}
	return nil
}

func (r *Runner) transferShares(s Step) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	from, to, err := r.fromTo(s)
	if err != nil {
		return err
	}
	amount, err := parseAmount(s.Amount)
	if err != nil {
		return err
	}
	return p.Transfer(from, to, amount)
}

// swap sends AmountIn of Token to the pair and takes the other token out.
// Without AmountOut the largest acceptable output is quoted from what the
// pair actually received.
func (r *Runner) swap(s Step) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	from, to, err := r.fromTo(s)
	if err != nil {
		return err
	}
	tokIn, inIsToken0, err := r.pairToken(p, s.Token)
	if err != nil {
		return err
	}
	amountOut, err := r.sendAndQuote(p, s, from, tokIn, inIsToken0)
	if err != nil {
		return err
	}
	zero := new(uint256.Int)
	if inIsToken0 {
		return p.Swap(from, zero, amountOut, to, nil)
	}
	return p.Swap(from, amountOut, zero, to, nil)
}

func (r *Runner) swapFor0(s Step) error { return r.swapSingle(s, true) }
func (r *Runner) swapFor1(s Step) error { return r.swapSingle(s, false) }

// swapSingle pays with the token opposite the output and lets the pair
// infer the input.
func (r *Runner) swapSingle(s Step, zeroForOut bool) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	from, to, err := r.fromTo(s)
	if err != nil {
		return err
	}
	tokIn := r.tokenAt(p.Token0())
	if zeroForOut {
		tokIn = r.tokenAt(p.Token1())
	}
	amountOut, err := r.sendAndQuote(p, s, from, tokIn, !zeroForOut)
	if err != nil {
		return err
	}
	if zeroForOut {
		return p.SwapFor0(from, amountOut, to)
	}
	return p.SwapFor1(from, amountOut, to)
}

func (r *Runner) sendAndQuote(p *pair.Pair, s Step, from common.Address, tokIn *ledger.Token, inIsToken0 bool) (*uint256.Int, error) {
	amountIn, err := parseAmount(s.AmountIn)
	if err != nil {
		return nil, err
	}
	if err := tokIn.Transfer(from, p.Address(), amountIn); err != nil {
		return nil, err
	}
	if s.AmountOut != "" {
		return parseAmount(s.AmountOut)
	}
	reserve0, reserve1, _ := p.GetReserves()
	reserveIn, reserveOut := reserve1, reserve0
	if inIsToken0 {
		reserveIn, reserveOut = reserve0, reserve1
	}
	received := fixedmath.SaturatingSub(tokIn.BalanceOf(p.Address()), reserveIn)
	return QuoteOut(received, reserveIn, reserveOut, p.SwapFee())
}

// flashSwap lends AmountOut of Token to To, which repays Repay of
// RepayToken (default Token) from inside the swap callback.
func (r *Runner) flashSwap(s Step) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	from, to, err := r.fromTo(s)
	if err != nil {
		return err
	}
	_, outIsToken0, err := r.pairToken(p, s.Token)
	if err != nil {
		return err
	}
	amountOut, err := parseAmount(s.AmountOut)
	if err != nil {
		return err
	}
	repaySymbol := s.RepayToken
	if repaySymbol == "" {
		repaySymbol = s.Token
	}
	repayToken, err := r.token(repaySymbol)
	if err != nil {
		return err
	}
	repay := new(uint256.Int)
	if s.Repay != "" {
		if repay, err = parseAmount(s.Repay); err != nil {
			return err
		}
	}

	r.callees.Register(to, pair.CalleeFunc(func(_ common.Address, _, _ *uint256.Int, _ []byte) error {
		if repay.IsZero() {
			return nil
		}
		return repayToken.Transfer(to, p.Address(), repay)
	}))
	defer r.callees.Remove(to)

	zero := new(uint256.Int)
	if outIsToken0 {
		return p.Swap(from, amountOut, zero, to, flashData)
	}
	return p.Swap(from, zero, amountOut, to, flashData)
}

func (r *Runner) skim(s Step) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	to, err := r.resolve(s.To)
	if err != nil {
		return err
	}
	return p.Skim(to)
}

func (r *Runner) sync(s Step) error {
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	return p.Sync()
}

func (r *Runner) advance(s Step) error {
	r.clock.Advance(s.Seconds)
	return nil
}

func (r *Runner) setFeeTo(s Step) error {
	caller, err := r.caller(s)
	if err != nil {
		return err
	}
	feeTo := common.Address{}
	if s.To != "" {
		if feeTo, err = r.resolve(s.To); err != nil {
			return err
		}
	}
	return r.factory.SetFeeTo(caller, feeTo)
}

func (r *Runner) setSwapFee(s Step) error {
	caller, err := r.caller(s)
	if err != nil {
		return err
	}
	if s.Fee == nil {
		return fmt.Errorf("set_swap_fee needs fee")
	}
	return r.factory.SetSwapFeePoint(caller, *s.Fee)
}

func (r *Runner) setProtocolFeeFactor(s Step) error {
	caller, err := r.caller(s)
	if err != nil {
		return err
	}
	if s.Factor == nil {
		return fmt.Errorf("set_protocol_fee_factor needs factor")
	}
	return r.factory.SetProtocolFeeFactor(caller, *s.Factor)
}

// setFeeOverride without a fee clears the pair's override.
func (r *Runner) setFeeOverride(s Step) error {
	caller, err := r.caller(s)
	if err != nil {
		return err
	}
	p, err := r.pair(s.Pair)
	if err != nil {
		return err
	}
	fee := pair.FeeInherit
	if s.Fee != nil {
		fee = *s.Fee
	}
	return r.factory.SetSwapFeeOverride(caller, p.Address(), fee)
}

// fromTo resolves From and To, with To defaulting to From.
func (r *Runner) fromTo(s Step) (common.Address, common.Address, error) {
	from, err := r.resolve(s.From)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if s.To == "" {
		return from, from, nil
	}
	to, err := r.resolve(s.To)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return from, to, nil
}

// caller is From, or the factory's fee setter when From is empty.
func (r *Runner) caller(s Step) (common.Address, error) {
	if s.From == "" {
		return r.factory.FeeToSetter(), nil
	}
	return r.resolve(s.From)
}

// pairToken resolves a token symbol within a pair.
func (r *Runner) pairToken(p *pair.Pair, symbol string) (*ledger.Token, bool, error) {
	tok, err := r.token(symbol)
	if err != nil {
		return nil, false, err
	}
	switch tok.Address() {
	case p.Token0():
		return tok, true, nil
	case p.Token1():
		return tok, false, nil
	}
	return nil, false, fmt.Errorf("token %s is not in pair", symbol)
}
