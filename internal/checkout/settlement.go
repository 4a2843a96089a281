package checkout

import (
	"context"
	"log/slog"
	"sync"

	"checkout-orchestrator/internal/model"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
)

const settledCacheSize = 8192

// Settlement describes a confirmed payment to finalize.
type Settlement struct {
	UserID      string
	OrderID     string
	PaymentID   string
	Rail        model.Rail
	Partition   model.Partition
	Status      model.PaymentStatus
	TotalTokens decimal.Decimal
	// DiscountToken is the token the order was priced with, if any.
	DiscountToken *model.DiscountToken

	Discount *DiscountSelector
	Ledger   *OrderLedger
	// OnTokens receives the refreshed owned-token list.
	OnTokens func([]model.DiscountToken)
}

type SettleReport struct {
	Result    Result
	Warnings  []*SettlementWarning
	Duplicate bool
}

// Finalizer runs the settlement side effects at most once per order.
type Finalizer struct {
	cart     CartProvider
	orders   OrderService
	tokens   TokenService
	balances BalanceService
	results  ResultSink
	cache    *BalanceCache
	logger   *slog.Logger

	mu      sync.Mutex
	settled *lru.Cache[string, struct{}]
}

func NewFinalizer(deps Deps, cache *BalanceCache, logger *slog.Logger) *Finalizer {
	settled, err := lru.New[string, struct{}](settledCacheSize)
	if err != nil {
		panic("failed to create settlement cache: " + err.Error())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		cart:     deps.Cart,
		orders:   deps.Orders,
		tokens:   deps.Tokens,
		balances: deps.Balances,
		results:  deps.Results,
		cache:    cache,
		logger:   logger,
		settled:  settled,
	}
}

// Settle finalizes s. A second call for the same order, in this process or
// after the order store already recorded it as settled, is a no-op.
func (f *Finalizer) Settle(ctx context.Context, s *Settlement) *SettleReport {
	f.mu.Lock()
	if f.settled.Contains(s.OrderID) {
		f.mu.Unlock()
		return &SettleReport{Duplicate: true}
	}
	f.settled.Add(s.OrderID, struct{}{})
	f.mu.Unlock()

	logger := f.logger.With("order_id", s.OrderID, "payment_id", s.PaymentID, "rail", s.Rail)
	report := &SettleReport{}
	warn := func(step string, err error) {
		logger.Warn("settlement side effect failed", "step", step, "error", err)
		report.Warnings = append(report.Warnings, &SettlementWarning{Step: step, Err: err})
	}

	changed, err := f.orders.MarkSettled(ctx, s.OrderID, s.PaymentID)
	switch {
	case err != nil:
		warn("mark order settled", err)
	case !changed:
		logger.Info("order already settled, skipping")
		return &SettleReport{Duplicate: true}
	}

	if tok := s.DiscountToken; tok != nil && f.tokens != nil {
		err := f.tokens.TransferToken(ctx, &model.TokenTransfer{
			TokenID: tok.TokenID,
			UserID:  s.UserID,
			OrderID: s.OrderID,
		})
		if err != nil {
			warn("transfer discount token", err)
		} else if owned, err := f.tokens.OwnedTokens(ctx, s.UserID); err != nil {
			warn("refresh owned tokens", err)
		} else if s.OnTokens != nil {
			s.OnTokens(owned)
		}
	}
	if s.Discount != nil {
		s.Discount.Clear()
	}

	if s.Rail == model.RailLedgerTransfer {
		f.cache.Decrement(s.UserID, s.TotalTokens)
		if balance, err := f.balances.FetchBalance(ctx, s.UserID); err != nil {
			warn("refresh balance", err)
		} else {
			f.cache.Set(s.UserID, balance)
		}
	}

	if err := f.cart.Clear(ctx, s.UserID, s.Partition); err != nil {
		warn("clear cart", err)
	}

	if s.Ledger != nil {
		s.Ledger.Reset()
	}

	report.Result = Result{
		OrderID:   s.OrderID,
		PaymentID: s.PaymentID,
		Status:    s.Status,
		OrderType: s.Partition,
	}
	for _, w := range report.Warnings {
		report.Result.Warnings = append(report.Result.Warnings, w.Error())
	}
	if f.results != nil {
		f.results.Show(ctx, s.UserID, report.Result)
	}

	logger.Info("order settled", "status", s.Status, "warnings", len(report.Warnings))
	return report
}
