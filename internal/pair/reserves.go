package pair

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/fixedmath"
)

// update commits new reserves. Prices accumulate once per block using the
// previous reserves. Timestamps and accumulators wrap.
func (p *Pair) update(balance0, balance1, reserve0, reserve1 *uint256.Int) error {
	if !fixedmath.FitsUint112(balance0) || !fixedmath.FitsUint112(balance1) {
		return ErrOverflow
	}

	blockTimestamp := uint32(p.clock.Now())
	elapsed := blockTimestamp - p.blockTimestampLast
	if elapsed > 0 && !reserve0.IsZero() && !reserve1.IsZero() {
		c0, c1 := advanceCumulative(p.price0CumulativeLast, p.price1CumulativeLast, reserve0, reserve1, elapsed)
		old0, old1 := p.price0CumulativeLast, p.price1CumulativeLast
		p.record(func() { p.price0CumulativeLast, p.price1CumulativeLast = old0, old1 })
		p.price0CumulativeLast, p.price1CumulativeLast = c0, c1
	}

	oldR0, oldR1, oldTs := p.reserve0, p.reserve1, p.blockTimestampLast
	p.record(func() { p.reserve0, p.reserve1, p.blockTimestampLast = oldR0, oldR1, oldTs })
	p.reserve0 = balance0.Clone()
	p.reserve1 = balance1.Clone()
	p.blockTimestampLast = blockTimestamp

	p.emit(SyncEvent{Reserve0: balance0.Clone(), Reserve1: balance1.Clone()})
	p.logger.Debug("reserves updated",
		zap.Stringer("reserve0", balance0),
		zap.Stringer("reserve1", balance1),
		zap.Uint32("timestamp", blockTimestamp),
	)
	return nil
}

// advanceCumulative adds reserve1/reserve0 and reserve0/reserve1, as UQ112x112,
// times elapsed seconds. Multiplication and addition wrap modulo 2^256.
func advanceCumulative(cumulative0, cumulative1, reserve0, reserve1 *uint256.Int, elapsed uint32) (*uint256.Int, *uint256.Int) {
	e := uint256.NewInt(uint64(elapsed))

	price0 := fixedmath.UQDiv(fixedmath.Encode(reserve1), reserve0)
	price0.Mul(price0, e)
	price1 := fixedmath.UQDiv(fixedmath.Encode(reserve0), reserve1)
	price1.Mul(price1, e)

	return new(uint256.Int).Add(cumulative0, price0), new(uint256.Int).Add(cumulative1, price1)
}

func (p *Pair) setKLast(v *uint256.Int) {
	old := p.kLast
	p.record(func() { p.kLast = old })
	p.kLast = v
}

func (p *Pair) balances2() (*uint256.Int, *uint256.Int) {
	return p.token0.BalanceOf(p.address), p.token1.BalanceOf(p.address)
}

// Sync forces reserves to match the pair's token balances.
func (p *Pair) Sync() (err error) {
	exit, err := p.enter()
	if err != nil {
		return err
	}
	defer exit(&err)

	balance0, balance1 := p.balances2()
	return p.update(balance0, balance1, p.reserve0, p.reserve1)
}

// Skim sends any balance above the recorded reserves to to.
func (p *Pair) Skim(to common.Address) (err error) {
	exit, err := p.enter()
	if err != nil {
		return err
	}
	defer exit(&err)

	balance0, balance1 := p.balances2()
	excess0, err := fixedmath.Sub(balance0, p.reserve0)
	if err != nil {
		return ErrBalanceBelowReserve
	}
	excess1, err := fixedmath.Sub(balance1, p.reserve1)
	if err != nil {
		return ErrBalanceBelowReserve
	}
	if err := p.transfer(p.token0, to, excess0); err != nil {
		return err
	}
	return p.transfer(p.token1, to, excess1)
}

func (p *Pair) transfer(token Token, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := token.Transfer(p.address, to, amount); err != nil {
		return fmt.Errorf("transfer %s: %w", token.Address().Hex(), err)
	}
	return nil
}
