package pair

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/fixedmath"
)

func (p *Pair) TotalSupply() *uint256.Int { return p.totalSupply.Clone() }

func (p *Pair) BalanceOf(owner common.Address) *uint256.Int {
	if bal, ok := p.balances[owner]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// PrincipalOf returns the holder's claim recorded at its last share-balance change.
func (p *Pair) PrincipalOf(owner common.Address) Principal {
	pr, ok := p.principals[owner]
	if !ok {
		return Principal{Principal0: new(uint256.Int), Principal1: new(uint256.Int)}
	}
	return Principal{Principal0: pr.Principal0.Clone(), Principal1: pr.Principal1.Clone(), TimeLastUpdate: pr.TimeLastUpdate}
}

// Transfer moves liquidity shares. Sending shares to the pair itself prepares a Burn.
func (p *Pair) Transfer(from, to common.Address, value *uint256.Int) error {
	bal := p.BalanceOf(from)
	if bal.Lt(value) {
		return ErrInsufficientShares
	}
	p.setBalance(from, new(uint256.Int).Sub(bal, value))
	p.setBalance(to, new(uint256.Int).Add(p.BalanceOf(to), value))
	p.refreshPrincipal(from)
	p.refreshPrincipal(to)
	p.emit(TransferEvent{From: from, To: to, Value: value.Clone()})
	return nil
}

func (p *Pair) setBalance(owner common.Address, v *uint256.Int) {
	old, had := p.balances[owner]
	p.record(func() {
		if had {
			p.balances[owner] = old
		} else {
			delete(p.balances, owner)
		}
	})
	p.balances[owner] = v
}

func (p *Pair) setTotalSupply(v *uint256.Int) {
	old := p.totalSupply
	p.record(func() { p.totalSupply = old })
	p.totalSupply = v
}

func (p *Pair) mintShares(to common.Address, value *uint256.Int) {
	p.setTotalSupply(new(uint256.Int).Add(p.totalSupply, value))
	p.setBalance(to, new(uint256.Int).Add(p.BalanceOf(to), value))
	p.refreshPrincipal(to)
	p.emit(TransferEvent{From: common.Address{}, To: to, Value: value.Clone()})
}

func (p *Pair) burnShares(from common.Address, value *uint256.Int) {
	p.setBalance(from, new(uint256.Int).Sub(p.BalanceOf(from), value))
	p.setTotalSupply(new(uint256.Int).Sub(p.totalSupply, value))
	p.refreshPrincipal(from)
	p.emit(TransferEvent{From: from, To: common.Address{}, Value: value.Clone()})
}

// refreshPrincipal rebuilds owner's pro-rata claim from the current reserves and supply.
func (p *Pair) refreshPrincipal(owner common.Address) {
	if owner == (common.Address{}) || owner == p.address {
		return
	}
	next := Principal{
		Principal0:     new(uint256.Int),
		Principal1:     new(uint256.Int),
		TimeLastUpdate: uint32(p.clock.Now()),
	}
	if !p.totalSupply.IsZero() {
		bal := p.BalanceOf(owner)
		// bal <= supply < 2^256 and reserves < 2^112; fall back to zero on overflow.
		if v, err := fixedmath.MulDiv(bal, p.reserve0, p.totalSupply); err == nil {
			next.Principal0 = v
		}
		if v, err := fixedmath.MulDiv(bal, p.reserve1, p.totalSupply); err == nil {
			next.Principal1 = v
		}
	}

	old, had := p.principals[owner]
	p.record(func() {
		if had {
			p.principals[owner] = old
		} else {
			delete(p.principals, owner)
		}
	})
	p.principals[owner] = next
}

// mintFee mints the protocol's share of invariant growth since kLast to feeTo.
// It must run before any pro-rata math that reads totalSupply.
func (p *Pair) mintFee(reserve0, reserve1 *uint256.Int) (bool, error) {
	feeTo := p.fees.FeeTo()
	feeOn := feeTo != (common.Address{})
	if !feeOn {
		if !p.kLast.IsZero() {
			p.setKLast(new(uint256.Int))
		}
		return false, nil
	}
	if p.kLast.IsZero() {
		return true, nil
	}

	shares, err := protocolFeeShares(p.totalSupply, reserve0, reserve1, p.kLast, p.fees.ProtocolFeeFactor())
	if err != nil {
		return true, err
	}
	if !shares.IsZero() {
		p.mintShares(feeTo, shares)
		p.logger.Debug("protocol fee minted", zap.String("fee_to", feeTo.Hex()), zap.Stringer("shares", shares))
	}
	return true, nil
}

// protocolFeeShares returns supply*(rootK-rootKLast) / ((factor-1)*rootK + rootKLast).
// A zero factor disables the fee.
func protocolFeeShares(totalSupply, reserve0, reserve1, kLast *uint256.Int, factor uint8) (*uint256.Int, error) {
	if factor == 0 {
		return new(uint256.Int), nil
	}
	k, err := fixedmath.Mul(reserve0, reserve1)
	if err != nil {
		return nil, err
	}
	rootK := fixedmath.Sqrt(k)
	rootKLast := fixedmath.Sqrt(kLast)
	if !rootK.Gt(rootKLast) {
		return new(uint256.Int), nil
	}

	numerator, err := fixedmath.Mul(totalSupply, new(uint256.Int).Sub(rootK, rootKLast))
	if err != nil {
		return nil, err
	}
	denominator, err := fixedmath.Mul(rootK, uint256.NewInt(uint64(factor-1)))
	if err != nil {
		return nil, err
	}
	if denominator, err = fixedmath.Add(denominator, rootKLast); err != nil {
		return nil, err
	}
	return numerator.Div(numerator, denominator), nil
}

// Mint credits liquidity for the tokens sent to the pair since the last update.
func (p *Pair) Mint(sender, to common.Address) (liquidity *uint256.Int, err error) {
	exit, err := p.enter()
	if err != nil {
		return nil, err
	}
	defer exit(&err)

	reserve0, reserve1 := p.reserve0, p.reserve1
	balance0, balance1 := p.balances2()
	amount0, err := fixedmath.Sub(balance0, reserve0)
	if err != nil {
		return nil, ErrBalanceBelowReserve
	}
	amount1, err := fixedmath.Sub(balance1, reserve1)
	if err != nil {
		return nil, ErrBalanceBelowReserve
	}

	feeOn, err := p.mintFee(reserve0, reserve1)
	if err != nil {
		return nil, err
	}

	liquidity, err = mintLiquidity(amount0, amount1, reserve0, reserve1, p.totalSupply)
	if err != nil {
		return nil, err
	}
	if p.totalSupply.IsZero() {
		p.mintShares(common.Address{}, uint256.NewInt(MinimumLiquidity))
	}
	p.mintShares(to, liquidity)

	if err := p.update(balance0, balance1, reserve0, reserve1); err != nil {
		return nil, err
	}
	if feeOn {
		p.setKLast(new(uint256.Int).Mul(p.reserve0, p.reserve1))
		p.refreshPrincipal(p.fees.FeeTo())
	}
	p.refreshPrincipal(to)

	p.emit(MintEvent{Sender: sender, Amount0: amount0, Amount1: amount1})
	p.logger.Debug("mint", zap.String("to", to.Hex()), zap.Stringer("liquidity", liquidity))
	return liquidity.Clone(), nil
}

// mintLiquidity computes the shares owed for a deposit. The first deposit is
// priced at sqrt(amount0*amount1) minus the locked minimum; later deposits get
// the smaller of the two pro-rata ratios.
func mintLiquidity(amount0, amount1, reserve0, reserve1, totalSupply *uint256.Int) (*uint256.Int, error) {
	var liquidity *uint256.Int
	if totalSupply.IsZero() {
		product, err := fixedmath.Mul(amount0, amount1)
		if err != nil {
			return nil, err
		}
		root := fixedmath.Sqrt(product)
		if !root.Gt(uint256.NewInt(MinimumLiquidity)) {
			return nil, ErrInsufficientMinted
		}
		liquidity = root.Sub(root, uint256.NewInt(MinimumLiquidity))
	} else {
		l0, err := fixedmath.MulDiv(amount0, totalSupply, reserve0)
		if err != nil {
			return nil, err
		}
		l1, err := fixedmath.MulDiv(amount1, totalSupply, reserve1)
		if err != nil {
			return nil, err
		}
		liquidity = fixedmath.Min(l0, l1)
	}
	if liquidity.IsZero() {
		return nil, ErrInsufficientMinted
	}
	return liquidity, nil
}

// Burn redeems the shares held by the pair itself, pro-rata on current balances.
func (p *Pair) Burn(sender, to common.Address) (amount0, amount1 *uint256.Int, err error) {
	exit, err := p.enter()
	if err != nil {
		return nil, nil, err
	}
	defer exit(&err)

	reserve0, reserve1 := p.reserve0, p.reserve1
	balance0, balance1 := p.balances2()
	liquidity := p.BalanceOf(p.address)

	feeOn, err := p.mintFee(reserve0, reserve1)
	if err != nil {
		return nil, nil, err
	}

	amount0, amount1, err = burnAmounts(liquidity, balance0, balance1, p.totalSupply)
	if err != nil {
		return nil, nil, err
	}
	p.burnShares(p.address, liquidity)

	if err := p.transfer(p.token0, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.transfer(p.token1, to, amount1); err != nil {
		return nil, nil, err
	}

	balance0, balance1 = p.balances2()
	if err := p.update(balance0, balance1, reserve0, reserve1); err != nil {
		return nil, nil, err
	}
	if feeOn {
		p.setKLast(new(uint256.Int).Mul(p.reserve0, p.reserve1))
	}

	p.emit(BurnEvent{Sender: sender, Amount0: amount0.Clone(), Amount1: amount1.Clone(), To: to})
	p.logger.Debug("burn", zap.String("to", to.Hex()), zap.Stringer("liquidity", liquidity))
	return amount0, amount1, nil
}

func burnAmounts(liquidity, balance0, balance1, totalSupply *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if totalSupply.IsZero() {
		return nil, nil, ErrInsufficientBurned
	}
	amount0, err := fixedmath.MulDiv(liquidity, balance0, totalSupply)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := fixedmath.MulDiv(liquidity, balance1, totalSupply)
	if err != nil {
		return nil, nil, err
	}
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, ErrInsufficientBurned
	}
	return amount0, amount1, nil
}

// Restore seeds an empty pair from a snapshot. MinimumLiquidity of the supply is
// locked at the zero address and the rest credited to holder. The caller is
// responsible for the pair's token balances.
func (p *Pair) Restore(s Snapshot, holder common.Address) (err error) {
	exit, err := p.enter()
	if err != nil {
		return err
	}
	defer exit(&err)

	if !p.totalSupply.IsZero() || !p.reserve0.IsZero() || !p.reserve1.IsZero() {
		return ErrAlreadyInitialized
	}
	if s.Reserve0 == nil || s.Reserve1 == nil || s.TotalSupply == nil {
		return ErrInsufficientLiquidity
	}
	if !fixedmath.FitsUint112(s.Reserve0) || !fixedmath.FitsUint112(s.Reserve1) {
		return ErrOverflow
	}
	if !s.TotalSupply.Gt(uint256.NewInt(MinimumLiquidity)) {
		return ErrInsufficientMinted
	}

	oldR0, oldR1, oldTs := p.reserve0, p.reserve1, p.blockTimestampLast
	oldC0, oldC1, oldK := p.price0CumulativeLast, p.price1CumulativeLast, p.kLast
	p.record(func() {
		p.reserve0, p.reserve1, p.blockTimestampLast = oldR0, oldR1, oldTs
		p.price0CumulativeLast, p.price1CumulativeLast, p.kLast = oldC0, oldC1, oldK
	})
	p.reserve0, p.reserve1 = s.Reserve0.Clone(), s.Reserve1.Clone()
	p.blockTimestampLast = s.BlockTimestampLast
	p.price0CumulativeLast = cloneOrZero(s.Price0CumulativeLast)
	p.price1CumulativeLast = cloneOrZero(s.Price1CumulativeLast)
	p.kLast = cloneOrZero(s.KLast)

	p.mintShares(common.Address{}, uint256.NewInt(MinimumLiquidity))
	p.mintShares(holder, new(uint256.Int).Sub(s.TotalSupply, uint256.NewInt(MinimumLiquidity)))
	p.emit(SyncEvent{Reserve0: p.reserve0.Clone(), Reserve1: p.reserve1.Clone()})
	return nil
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
