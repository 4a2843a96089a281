package checkout_test

import (
	"context"
	"errors"
	"testing"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	a := item("a", 1, "10.00", "5", false)
	b := item("b", 2, "3.50", "1", true)

	base := checkout.ContentHash([]model.LineItem{a, b})
	assert.Equal(t, base, checkout.ContentHash([]model.LineItem{b, a}), "row order must not matter")

	normalized := a
	normalized.UnitFiatPrice = dec("10")
	assert.Equal(t, base, checkout.ContentHash([]model.LineItem{normalized, b}), "equal prices must hash equal")

	more := b
	more.Quantity = 3
	assert.NotEqual(t, base, checkout.ContentHash([]model.LineItem{a, more}))
	assert.NotEqual(t, base, checkout.ContentHash([]model.LineItem{a}))
	assert.NotEqual(t, base, checkout.ContentHash([]model.LineItem{a, b, item("c", 1, "1", "1", false)}))

	repriced := a
	repriced.UnitTokenPrice = dec("6")
	assert.NotEqual(t, base, checkout.ContentHash([]model.LineItem{repriced, b}))
}

func ledgerRequest(items ...model.LineItem) *checkout.OrderRequest {
	return &checkout.OrderRequest{
		UserID:    testUser,
		Partition: model.PartitionPhysical,
		Rail:      model.RailCardRedirect,
		Unit:      model.UnitFiat,
		Method:    "card",
		Items:     items,
		Amounts:   checkout.Calculate(items, decimal.Zero),
		AddressID: "addr-1",
	}
}

func TestOrderLedgerReusesOrderForSameCart(t *testing.T) {
	orders := &fakeOrders{}
	l := checkout.NewOrderLedger(orders)
	ctx := context.Background()
	items := []model.LineItem{item("a", 1, "10", "5", false)}

	first, created, err := l.EnsureOrder(ctx, ledgerRequest(items...))
	require.NoError(t, err)
	assert.True(t, created)

	for range 3 {
		id, created, err := l.EnsureOrder(ctx, ledgerRequest(items...))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first, id)
	}
	assert.Len(t, orders.Created(), 1)
}

func TestOrderLedgerCreatesOnChange(t *testing.T) {
	orders := &fakeOrders{}
	l := checkout.NewOrderLedger(orders)
	ctx := context.Background()
	items := []model.LineItem{item("a", 1, "10", "5", false)}

	first, _, err := l.EnsureOrder(ctx, ledgerRequest(items...))
	require.NoError(t, err)

	changed := []model.LineItem{item("a", 2, "10", "5", false)}
	second, created, err := l.EnsureOrder(ctx, ledgerRequest(changed...))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first, second)

	l.Invalidate()
	third, created, err := l.EnsureOrder(ctx, ledgerRequest(changed...))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, second, third)

	req := ledgerRequest(changed...)
	req.Unit = model.UnitLedger
	_, created, err = l.EnsureOrder(ctx, req)
	require.NoError(t, err)
	assert.True(t, created, "switching unit of account reprices the order")

	assert.Len(t, orders.Created(), 4)
	assert.Equal(t, []string{third}, orders.Superseded(), "only the same-cart order is retired")
}

func TestOrderLedgerSupersedesRepricedOrder(t *testing.T) {
	orders := &fakeOrders{}
	l := checkout.NewOrderLedger(orders)
	ctx := context.Background()
	items := []model.LineItem{item("a", 1, "100", "50", false)}
	hash := checkout.ContentHash(items)

	first, _, err := l.EnsureOrder(ctx, ledgerRequest(items...))
	require.NoError(t, err)

	discounted := ledgerRequest(items...)
	discounted.Discount = &model.DiscountToken{TokenID: "t20", DiscountPercent: dec("20")}
	discounted.Amounts = checkout.Calculate(items, dec("20"))
	second, created, err := l.EnsureOrder(ctx, discounted)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{first}, orders.Superseded())
	assert.Equal(t, 1, orders.Pending(hash))

	again, created, err := l.EnsureOrder(ctx, discounted)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, second, again)

	orders.supersedeErr = errors.New("db down")
	_, _, err = l.EnsureOrder(ctx, ledgerRequest(items...))
	var oce *checkout.OrderCreationError
	require.ErrorAs(t, err, &oce)
	assert.Len(t, orders.Created(), 2, "no new order while the old one is still pending")
	current, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, second, current)
}

func TestOrderLedgerFailureKeepsNoBaseline(t *testing.T) {
	orders := &fakeOrders{err: errors.New("validation failed")}
	l := checkout.NewOrderLedger(orders)
	items := []model.LineItem{item("a", 1, "10", "5", false)}

	_, _, err := l.EnsureOrder(context.Background(), ledgerRequest(items...))
	var oce *checkout.OrderCreationError
	require.ErrorAs(t, err, &oce)
	_, ok := l.Current()
	assert.False(t, ok)

	orders.err = nil
	id, created, err := l.EnsureOrder(context.Background(), ledgerRequest(items...))
	require.NoError(t, err)
	assert.True(t, created)
	current, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, id, current)
}

func TestOrderLedgerPayload(t *testing.T) {
	ctx := context.Background()

	t.Run("physical with shipping keeps address", func(t *testing.T) {
		orders := &fakeOrders{}
		_, _, err := checkout.NewOrderLedger(orders).EnsureOrder(ctx, ledgerRequest(item("a", 2, "10", "5", false)))
		require.NoError(t, err)

		p := orders.Created()[0]
		assert.Equal(t, "addr-1", p.AddressID)
		assert.Equal(t, "card", p.PaymentMethod)
		assert.True(t, p.Total.Equal(dec("20")))
		assert.NotEmpty(t, p.LineItemsHash)
	})

	t.Run("digital drops address", func(t *testing.T) {
		orders := &fakeOrders{}
		req := ledgerRequest(item("a", 1, "10", "5", true))
		req.Partition = model.PartitionDigital
		_, _, err := checkout.NewOrderLedger(orders).EnsureOrder(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, orders.Created()[0].AddressID)
	})

	t.Run("ledger unit totals in tokens", func(t *testing.T) {
		orders := &fakeOrders{}
		items := []model.LineItem{item("a", 1, "10", "50", true)}
		req := ledgerRequest(items...)
		req.Partition = model.PartitionDigital
		req.Unit = model.UnitLedger
		req.Discount = &model.DiscountToken{TokenID: "t1", DiscountPercent: dec("10")}
		req.Amounts = checkout.Calculate(items, dec("10"))

		_, _, err := checkout.NewOrderLedger(orders).EnsureOrder(ctx, req)
		require.NoError(t, err)

		p := orders.Created()[0]
		assert.True(t, p.Total.Equal(dec("45")))
		assert.True(t, p.DiscountAmount.Equal(dec("5")))
		assert.Equal(t, "t1", p.DiscountTokenID)
	})
}
