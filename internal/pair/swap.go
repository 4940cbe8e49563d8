package pair

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/fixedmath"
)

// Swap sends the requested outputs to to, optionally calls the callee at to
// with data, then infers inputs from the pair's balances and checks the
// fee-adjusted invariant. Inputs may arrive before the call or from the callee.
func (p *Pair) Swap(sender common.Address, amount0Out, amount1Out *uint256.Int, to common.Address, data []byte) (err error) {
	exit, err := p.enter()
	if err != nil {
		return err
	}
	defer exit(&err)

	if amount0Out.IsZero() && amount1Out.IsZero() {
		return ErrInsufficientOutput
	}
	reserve0, reserve1 := p.reserve0, p.reserve1
	if !amount0Out.Lt(reserve0) || !amount1Out.Lt(reserve1) {
		return ErrInsufficientLiquidity
	}
	if err := p.checkRecipient(to); err != nil {
		return err
	}

	if err := p.transfer(p.token0, to, amount0Out); err != nil {
		return err
	}
	if err := p.transfer(p.token1, to, amount1Out); err != nil {
		return err
	}
	if len(data) > 0 {
		if err := p.notify(sender, amount0Out, amount1Out, to, data); err != nil {
			return err
		}
	}

	balance0, balance1 := p.balances2()
	amount0In := inferIn(balance0, reserve0, amount0Out)
	amount1In := inferIn(balance1, reserve1, amount1Out)
	if amount0In.IsZero() && amount1In.IsZero() {
		return ErrInsufficientInput
	}

	if err := checkK(balance0, balance1, amount0In, amount1In, reserve0, reserve1, p.SwapFee()); err != nil {
		return err
	}
	if err := p.update(balance0, balance1, reserve0, reserve1); err != nil {
		return err
	}

	p.emit(SwapEvent{
		Sender:     sender,
		Amount0In:  amount0In,
		Amount1In:  amount1In,
		Amount0Out: amount0Out.Clone(),
		Amount1Out: amount1Out.Clone(),
		To:         to,
	})
	p.logger.Debug("swap",
		zap.Stringer("amount0_in", amount0In),
		zap.Stringer("amount1_in", amount1In),
		zap.Stringer("amount0_out", amount0Out),
		zap.Stringer("amount1_out", amount1Out),
	)
	return nil
}

// SwapFor0 sends amount0Out of token0 to to against token1 already in the pair.
// There is no callback.
func (p *Pair) SwapFor0(sender common.Address, amount0Out *uint256.Int, to common.Address) (err error) {
	exit, err := p.enter()
	if err != nil {
		return err
	}
	defer exit(&err)

	return p.swapSingle(sender, true, amount0Out, to)
}

// SwapFor1 sends amount1Out of token1 to to against token0 already in the pair.
// There is no callback.
func (p *Pair) SwapFor1(sender common.Address, amount1Out *uint256.Int, to common.Address) (err error) {
	exit, err := p.enter()
	if err != nil {
		return err
	}
	defer exit(&err)

	return p.swapSingle(sender, false, amount1Out, to)
}

func (p *Pair) swapSingle(sender common.Address, zeroForOut bool, amountOut *uint256.Int, to common.Address) error {
	if amountOut.IsZero() {
		return ErrInsufficientOutput
	}
	reserve0, reserve1 := p.reserve0, p.reserve1
	reserveOut, reserveIn := reserve1, reserve0
	tokenOut := p.token1
	if zeroForOut {
		reserveOut, reserveIn = reserve0, reserve1
		tokenOut = p.token0
	}
	if !amountOut.Lt(reserveOut) {
		return ErrInsufficientLiquidity
	}
	if err := p.checkRecipient(to); err != nil {
		return err
	}

	if err := p.transfer(tokenOut, to, amountOut); err != nil {
		return err
	}

	balance0, balance1 := p.balances2()
	balanceOut, balanceIn := balance1, balance0
	if zeroForOut {
		balanceOut, balanceIn = balance0, balance1
	}
	amountIn := inferIn(balanceIn, reserveIn, new(uint256.Int))
	if amountIn.IsZero() {
		return ErrInsufficientInput
	}

	if err := checkKSingle(balanceOut, balanceIn, amountIn, reserve0, reserve1, p.SwapFee()); err != nil {
		return err
	}
	if err := p.update(balance0, balance1, reserve0, reserve1); err != nil {
		return err
	}

	ev := SwapEvent{
		Sender:     sender,
		Amount0In:  new(uint256.Int),
		Amount1In:  new(uint256.Int),
		Amount0Out: new(uint256.Int),
		Amount1Out: new(uint256.Int),
		To:         to,
	}
	if zeroForOut {
		ev.Amount1In, ev.Amount0Out = amountIn, amountOut.Clone()
	} else {
		ev.Amount0In, ev.Amount1Out = amountIn, amountOut.Clone()
	}
	p.emit(ev)
	p.logger.Debug("swap single",
		zap.Bool("token0_out", zeroForOut),
		zap.Stringer("amount_in", amountIn),
		zap.Stringer("amount_out", amountOut),
	)
	return nil
}

func (p *Pair) checkRecipient(to common.Address) error {
	if to == p.token0.Address() || to == p.token1.Address() {
		return ErrInvalidTo
	}
	return nil
}

func (p *Pair) notify(sender common.Address, amount0Out, amount1Out *uint256.Int, to common.Address, data []byte) error {
	if p.callees == nil {
		return ErrMissingCallee
	}
	callee, ok := p.callees.Callee(to)
	if !ok {
		return ErrMissingCallee
	}
	if err := callee.OnSwap(sender, amount0Out.Clone(), amount1Out.Clone(), data); err != nil {
		return fmt.Errorf("swap callback: %w", err)
	}
	return nil
}

// inferIn is max(0, balance - (reserve - amountOut)).
func inferIn(balance, reserve, amountOut *uint256.Int) *uint256.Int {
	floor := new(uint256.Int).Sub(reserve, amountOut)
	if !balance.Gt(floor) {
		return new(uint256.Int)
	}
	return floor.Sub(balance, floor)
}

// adjusted returns balance*FeePrecision - amountIn*fee.
func adjusted(balance, amountIn *uint256.Int, fee uint16) (*uint256.Int, error) {
	scaled, err := fixedmath.Mul(balance, uint256.NewInt(FeePrecision))
	if err != nil {
		return nil, err
	}
	charged, err := fixedmath.Mul(amountIn, uint256.NewInt(uint64(fee)))
	if err != nil {
		return nil, err
	}
	// amountIn <= balance and fee <= FeePrecision.
	return fixedmath.Sub(scaled, charged)
}

// checkK requires adjusted0*adjusted1 >= reserve0*reserve1*FeePrecision^2.
func checkK(balance0, balance1, amount0In, amount1In, reserve0, reserve1 *uint256.Int, fee uint16) error {
	adj0, err := adjusted(balance0, amount0In, fee)
	if err != nil {
		return err
	}
	adj1, err := adjusted(balance1, amount1In, fee)
	if err != nil {
		return err
	}
	left, err := fixedmath.Mul(adj0, adj1)
	if err != nil {
		return err
	}
	right, err := scaledK(reserve0, reserve1, FeePrecision*FeePrecision)
	if err != nil {
		return err
	}
	if left.Lt(right) {
		return ErrK
	}
	return nil
}

// checkKSingle requires balanceOut*adjustedIn >= reserve0*reserve1*FeePrecision.
func checkKSingle(balanceOut, balanceIn, amountIn, reserve0, reserve1 *uint256.Int, fee uint16) error {
	adjIn, err := adjusted(balanceIn, amountIn, fee)
	if err != nil {
		return err
	}
	left, err := fixedmath.Mul(balanceOut, adjIn)
	if err != nil {
		return err
	}
	right, err := scaledK(reserve0, reserve1, FeePrecision)
	if err != nil {
		return err
	}
	if left.Lt(right) {
		return ErrK
	}
	return nil
}

func scaledK(reserve0, reserve1 *uint256.Int, scale uint64) (*uint256.Int, error) {
	k, err := fixedmath.Mul(reserve0, reserve1)
	if err != nil {
		return nil, err
	}
	return fixedmath.Mul(k, uint256.NewInt(scale))
}
