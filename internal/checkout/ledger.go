package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"checkout-orchestrator/internal/model"
)

// OrderRequest carries everything needed to create or reuse an order.
type OrderRequest struct {
	UserID    string
	Partition model.Partition
	Rail      model.Rail
	Unit      model.CurrencyUnit
	Method    string
	Items     []model.LineItem
	Amounts   Amounts
	Discount  *model.DiscountToken
	AddressID string
}

// baseline is the last order created in this session and the inputs it was
// priced from.
type baseline struct {
	orderID   string
	hash      string
	partition model.Partition
	unit      model.CurrencyUnit
	tokenID   string
}

// OrderLedger creates at most one order per distinct cart content.
type OrderLedger struct {
	mu     sync.Mutex
	orders OrderService
	base   *baseline
	// gen is bumped on every invalidation so an in-flight create cannot
	// store a baseline for a cart that has since changed.
	gen uint64
}

func NewOrderLedger(orders OrderService) *OrderLedger {
	return &OrderLedger{orders: orders}
}

// EnsureOrder returns the stored order id when the cart content, partition,
// unit and discount token match the baseline, and creates a new order
// otherwise. When only the unit or discount token changed, the previous order
// is superseded first so a cart never has two pending orders. created reports
// whether CreateOrder was called.
func (l *OrderLedger) EnsureOrder(ctx context.Context, req *OrderRequest) (orderID string, created bool, err error) {
	hash := ContentHash(req.Items)
	tokenID := ""
	if req.Discount != nil {
		tokenID = req.Discount.TokenID
	}

	l.mu.Lock()
	b := l.base
	if b != nil &&
		b.hash == hash &&
		b.partition == req.Partition &&
		b.unit == req.Unit &&
		b.tokenID == tokenID {
		l.mu.Unlock()
		return b.orderID, false, nil
	}
	gen := l.gen
	l.mu.Unlock()

	if b != nil && b.hash == hash && b.partition == req.Partition {
		if err := l.orders.Supersede(ctx, b.orderID); err != nil {
			return "", false, &OrderCreationError{Err: fmt.Errorf("supersede order %s: %w", b.orderID, err)}
		}
		l.mu.Lock()
		if l.base == b {
			l.base = nil
		}
		l.mu.Unlock()
	}

	orderID, err = l.orders.CreateOrder(ctx, buildPayload(req, hash, tokenID))
	if err != nil {
		return "", false, &OrderCreationError{Err: err}
	}
	if orderID == "" {
		return "", false, &OrderCreationError{Err: errors.New("order service returned no order id")}
	}

	l.mu.Lock()
	if l.gen == gen {
		l.base = &baseline{
			orderID:   orderID,
			hash:      hash,
			partition: req.Partition,
			unit:      req.Unit,
			tokenID:   tokenID,
		}
	}
	l.mu.Unlock()

	return orderID, true, nil
}

func buildPayload(req *OrderRequest, hash, tokenID string) *model.OrderPayload {
	payload := &model.OrderPayload{
		UserID:          req.UserID,
		LineItemsHash:   hash,
		Partition:       req.Partition,
		CurrencyUnit:    req.Unit,
		PaymentMethod:   req.Method,
		Total:           req.Amounts.TotalIn(req.Unit),
		TotalFiat:       req.Amounts.TotalFiat,
		TotalTokens:     req.Amounts.TotalTokens,
		DiscountPercent: req.Amounts.DiscountPercent,
		DiscountAmount:  req.Amounts.DiscountIn(req.Unit),
		DiscountTokenID: tokenID,
		Items:           append([]model.LineItem(nil), req.Items...),
	}
	if req.Partition == model.PartitionPhysical && needsShipping(req.Items) {
		payload.AddressID = req.AddressID
	}
	return payload
}

func needsShipping(items []model.LineItem) bool {
	for _, item := range items {
		if item.RequiresShipping() {
			return true
		}
	}
	return false
}

// Invalidate drops the baseline. Called synchronously on every cart change.
func (l *OrderLedger) Invalidate() {
	l.mu.Lock()
	l.base = nil
	l.gen++
	l.mu.Unlock()
}

// Reset clears the baseline after settlement.
func (l *OrderLedger) Reset() {
	l.Invalidate()
}

func (l *OrderLedger) Current() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.base == nil {
		return "", false
	}
	return l.base.orderID, true
}
