package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/push"

	"github.com/neilotoole/slogt"
	"github.com/shopspring/decimal"
)

const testUser = "user-1"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(productID string, qty int32, fiat, tokens string, digital bool) model.LineItem {
	return model.LineItem{
		ProductID:      productID,
		VariantID:      productID + "-v",
		Quantity:       qty,
		UnitFiatPrice:  dec(fiat),
		UnitTokenPrice: dec(tokens),
		IsDigital:      digital,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeCart struct {
	mu      sync.Mutex
	items   []model.LineItem
	cleared []model.Partition
	err     error
}

func (c *fakeCart) LineItems(_ context.Context, _ string, p model.Partition) ([]model.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return model.FilterPartition(append([]model.LineItem(nil), c.items...), p), nil
}

func (c *fakeCart) Clear(_ context.Context, _ string, p model.Partition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, p)
	if p == model.PartitionKiosk {
		c.items = nil
		return nil
	}
	var kept []model.LineItem
	for _, it := range c.items {
		if it.IsDigital != (p == model.PartitionDigital) {
			kept = append(kept, it)
		}
	}
	c.items = kept
	return nil
}

func (c *fakeCart) Set(items ...model.LineItem) {
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
}

func (c *fakeCart) Cleared() []model.Partition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Partition(nil), c.cleared...)
}

type fakeOrders struct {
	mu         sync.Mutex
	created    []*model.OrderPayload
	settled    map[string]string
	superseded []string
	err        error
	// supersedeErr fails Supersede, if set.
	supersedeErr error
}

func (o *fakeOrders) CreateOrder(_ context.Context, p *model.OrderPayload) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return "", o.err
	}
	o.created = append(o.created, p)
	return fmt.Sprintf("order-%d", len(o.created)), nil
}

func (o *fakeOrders) MarkSettled(_ context.Context, orderID, paymentID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.settled == nil {
		o.settled = make(map[string]string)
	}
	if _, ok := o.settled[orderID]; ok {
		return false, nil
	}
	o.settled[orderID] = paymentID
	return true, nil
}

func (o *fakeOrders) Supersede(_ context.Context, orderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.supersedeErr != nil {
		return o.supersedeErr
	}
	if _, ok := o.settled[orderID]; !ok {
		o.superseded = append(o.superseded, orderID)
	}
	return nil
}

func (o *fakeOrders) Superseded() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.superseded...)
}

// Pending counts orders for the cart hash that are neither settled nor
// superseded.
func (o *fakeOrders) Pending(hash string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for i, p := range o.created {
		id := fmt.Sprintf("order-%d", i+1)
		if p.LineItemsHash != hash || slices.Contains(o.superseded, id) {
			continue
		}
		if _, ok := o.settled[id]; ok {
			continue
		}
		n++
	}
	return n
}

func (o *fakeOrders) Created() []*model.OrderPayload {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*model.OrderPayload(nil), o.created...)
}

type fakePayments struct {
	mu    sync.Mutex
	reqs  []*model.PaymentResourceRequest
	err   error
	block chan struct{}
	// entered is signalled when a call starts, if set.
	entered chan struct{}
}

func (p *fakePayments) CreatePaymentResource(_ context.Context, req *model.PaymentResourceRequest) (*model.PaymentResource, error) {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.reqs = append(p.reqs, req)
	return &model.PaymentResource{
		PaymentID: fmt.Sprintf("pay-%d", len(p.reqs)),
		URL:       "https://pay.example/" + req.OrderID,
		Status:    model.PaymentPending,
	}, nil
}

func (p *fakePayments) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}

type fakeBalances struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	calls    int
}

func (b *fakeBalances) FetchBalance(_ context.Context, userID string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.balances[userID], nil
}

func (b *fakeBalances) set(userID string, v decimal.Decimal) {
	b.mu.Lock()
	if b.balances == nil {
		b.balances = make(map[string]decimal.Decimal)
	}
	b.balances[userID] = v
	b.mu.Unlock()
}

type fakeLedger struct {
	mu       sync.Mutex
	balances *fakeBalances
	reqs     []*model.TransferRequest
	decline  string
}

func (l *fakeLedger) Transfer(_ context.Context, req *model.TransferRequest) (*model.TransferResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, req)
	if l.decline != "" {
		return &model.TransferResult{Success: false, Message: l.decline}, nil
	}
	l.balances.mu.Lock()
	l.balances.balances[req.FromUserID] = l.balances.balances[req.FromUserID].Sub(req.Amount)
	l.balances.mu.Unlock()
	return &model.TransferResult{Success: true, PaymentID: fmt.Sprintf("ledger-%d", len(l.reqs))}, nil
}

func (l *fakeLedger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reqs)
}

type fakeTokens struct {
	mu        sync.Mutex
	owned     []model.DiscountToken
	transfers []*model.TokenTransfer
	err       error
	// unfiltered returns every token regardless of owner.
	unfiltered bool
}

func (f *fakeTokens) TransferToken(_ context.Context, req *model.TokenTransfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.transfers = append(f.transfers, req)
	var kept []model.DiscountToken
	for _, t := range f.owned {
		if t.TokenID != req.TokenID {
			kept = append(kept, t)
		}
	}
	f.owned = kept
	return nil
}

func (f *fakeTokens) OwnedTokens(_ context.Context, userID string) ([]model.DiscountToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DiscountToken
	for _, t := range f.owned {
		if f.unfiltered || t.OwnerID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokens) Transfers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

type fakeWallet struct {
	mu             sync.Mutex
	orders         *fakeOrders
	ordersAtPrompt int
	charges        int
	chargeErr      error
}

func (w *fakeWallet) PrepareSheet(_ context.Context, orderID string, amount decimal.Decimal, currency string) (*checkout.WalletSheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ordersAtPrompt = len(w.orders.Created())
	return &checkout.WalletSheet{OrderID: orderID, Amount: amount, Currency: currency, ClientToken: "client-token"}, nil
}

func (w *fakeWallet) Charge(_ context.Context, orderID, _ string, _ decimal.Decimal) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.chargeErr != nil {
		return "", w.chargeErr
	}
	w.charges++
	return "wallet-" + orderID, nil
}

type fakeJobs struct {
	mu       sync.Mutex
	statuses []string
	calls    int
}

func (j *fakeJobs) JobStatus(_ context.Context, _ string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.statuses) == 0 {
		return "", errors.New("no status")
	}
	i := j.calls
	if i >= len(j.statuses) {
		i = len(j.statuses) - 1
	}
	j.calls++
	return j.statuses[i], nil
}

func (j *fakeJobs) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

type fakeStatuses struct {
	mu     sync.Mutex
	status model.PaymentStatus
	calls  int
}

func (f *fakeStatuses) PaymentStatus(_ context.Context, _ string) (model.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status, nil
}

type resultRecorder struct {
	mu      sync.Mutex
	results []checkout.Result
}

func (r *resultRecorder) Show(_ context.Context, _ string, result checkout.Result) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
}

func (r *resultRecorder) All() []checkout.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]checkout.Result(nil), r.results...)
}

type harness struct {
	reg      *checkout.Registry
	clock    *fakeClock
	hub      *push.Hub
	cart     *fakeCart
	orders   *fakeOrders
	payments *fakePayments
	balances *fakeBalances
	ledger   *fakeLedger
	tokens   *fakeTokens
	wallet   *fakeWallet
	jobs     *fakeJobs
	statuses *fakeStatuses
	results  *resultRecorder
}

func newHarness(t *testing.T, configure ...func(*checkout.Config)) *harness {
	t.Helper()

	logger := slogt.New(t)
	h := &harness{
		clock:    newFakeClock(),
		hub:      push.NewHub(logger),
		cart:     &fakeCart{},
		orders:   &fakeOrders{},
		payments: &fakePayments{},
		balances: &fakeBalances{balances: map[string]decimal.Decimal{}},
		tokens:   &fakeTokens{},
		jobs:     &fakeJobs{},
		statuses: &fakeStatuses{status: model.PaymentPending},
		results:  &resultRecorder{},
	}
	h.ledger = &fakeLedger{balances: h.balances}
	h.wallet = &fakeWallet{orders: h.orders}

	cfg := checkout.DefaultConfig()
	cfg.Now = h.clock.Now
	cfg.Logger = logger
	for _, fn := range configure {
		fn(&cfg)
	}

	h.reg = checkout.NewRegistry(cfg, checkout.Deps{
		Cart:     h.cart,
		Orders:   h.orders,
		Payments: h.payments,
		Statuses: h.statuses,
		Ledger:   h.ledger,
		Tokens:   h.tokens,
		Balances: h.balances,
		Wallet:   h.wallet,
		Jobs:     h.jobs,
		Notifier: h.hub,
		Results:  h.results,
	})
	t.Cleanup(h.reg.Close)
	return h
}
