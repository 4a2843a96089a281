package checkout

import (
	"context"

	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/push"

	"github.com/shopspring/decimal"
)

// CartProvider reads and clears the user's cart. Cart mutation happens
// elsewhere; the provider's owner reports changes through Registry.CartChanged.
type CartProvider interface {
	LineItems(ctx context.Context, userID string, partition model.Partition) ([]model.LineItem, error)
	Clear(ctx context.Context, userID string, partition model.Partition) error
}

type OrderService interface {
	CreateOrder(ctx context.Context, payload *model.OrderPayload) (string, error)
	// MarkSettled moves a pending order to settled and reports whether this
	// call performed the transition.
	MarkSettled(ctx context.Context, orderID, paymentID string) (bool, error)
	// Supersede retires a pending order that was replaced by a re-priced
	// order for the same cart. Settled orders are left alone.
	Supersede(ctx context.Context, orderID string) error
}

type PaymentResourceService interface {
	CreatePaymentResource(ctx context.Context, req *model.PaymentResourceRequest) (*model.PaymentResource, error)
}

// PaymentStatusChecker returns the authoritative status of a payment.
type PaymentStatusChecker interface {
	PaymentStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error)
}

type LedgerService interface {
	Transfer(ctx context.Context, req *model.TransferRequest) (*model.TransferResult, error)
}

type TokenService interface {
	TransferToken(ctx context.Context, req *model.TokenTransfer) error
	OwnedTokens(ctx context.Context, userID string) ([]model.DiscountToken, error)
}

type BalanceService interface {
	FetchBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// WalletSheet is what the client needs to present a wallet payment sheet.
type WalletSheet struct {
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ClientToken string          `json:"client_token"`
}

type WalletGateway interface {
	PrepareSheet(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*WalletSheet, error)
	// Charge settles the nonce produced by the sheet and returns the payment id.
	Charge(ctx context.Context, orderID, nonce string, amount decimal.Decimal) (string, error)
}

type JobStatusService interface {
	JobStatus(ctx context.Context, jobID string) (string, error)
}

type Notifier interface {
	Join(userID, paymentID string) *push.Subscription
}

// Result is the terminal view a finished checkout lands on.
type Result struct {
	OrderID   string              `json:"order_id"`
	PaymentID string              `json:"payment_id"`
	Status    model.PaymentStatus `json:"status"`
	OrderType model.Partition     `json:"order_type"`
	Warnings  []string            `json:"warnings,omitempty"`
}

type ResultSink interface {
	Show(ctx context.Context, userID string, result Result)
}
