package ledger

import (
	"github.com/ethereum/go-ethereum/common"

	"pairEngine/internal/pair"
)

// Clock is a manually driven block timestamp.
type Clock struct {
	now uint64
}

func NewClock(start uint64) *Clock { return &Clock{now: start} }

func (c *Clock) Now() uint64 { return c.now }

func (c *Clock) Advance(seconds uint64) { c.now += seconds }

func (c *Clock) Set(now uint64) { c.now = now }

// Callees maps recipient addresses to the swap callee living there.
type Callees struct {
	m map[common.Address]pair.Callee
}

func NewCallees() *Callees {
	return &Callees{m: make(map[common.Address]pair.Callee)}
}

func (c *Callees) Register(addr common.Address, callee pair.Callee) { c.m[addr] = callee }

func (c *Callees) Remove(addr common.Address) { delete(c.m, addr) }

func (c *Callees) Callee(addr common.Address) (pair.Callee, bool) {
	callee, ok := c.m[addr]
	return callee, ok
}
