package checkout

import (
	"sync"

	"github.com/shopspring/decimal"
)

// BalanceCache is the locally known ledger balance per user. It is only
// written by settlement and by explicit refreshes of the authoritative value.
type BalanceCache struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func NewBalanceCache() *BalanceCache {
	return &BalanceCache{balances: make(map[string]decimal.Decimal)}
}

func (c *BalanceCache) Get(userID string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.balances[userID]
	return b, ok
}

func (c *BalanceCache) Set(userID string, balance decimal.Decimal) {
	c.mu.Lock()
	c.balances[userID] = balance
	c.mu.Unlock()
}

// Decrement subtracts amount from a known balance. Unknown balances stay
// unknown until the next refresh.
func (c *BalanceCache) Decrement(userID string, amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[userID]; ok {
		c.balances[userID] = b.Sub(amount)
	}
}
