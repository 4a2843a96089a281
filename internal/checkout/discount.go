package checkout

import (
	"fmt"
	"sync"

	"checkout-orchestrator/internal/model"

	"github.com/shopspring/decimal"
)

// DiscountSelector holds at most one active discount token.
type DiscountSelector struct {
	mu     sync.Mutex
	active *model.DiscountToken
}

// Toggle selects token, or clears the selection when token is already the
// active one. It reports whether a token is active afterwards.
func (d *DiscountSelector) Toggle(token model.DiscountToken) (bool, error) {
	if token.DiscountPercent.IsNegative() || token.DiscountPercent.GreaterThan(hundred) {
		return false, fmt.Errorf("discount percent %s out of range", token.DiscountPercent)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil && d.active.TokenID == token.TokenID {
		d.active = nil
		return false, nil
	}
	d.active = &token
	return true, nil
}

func (d *DiscountSelector) Active() (model.DiscountToken, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return model.DiscountToken{}, false
	}
	return *d.active, true
}

func (d *DiscountSelector) Percent() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return decimal.Zero
	}
	return d.active.DiscountPercent
}

func (d *DiscountSelector) Clear() {
	d.mu.Lock()
	d.active = nil
	d.mu.Unlock()
}
