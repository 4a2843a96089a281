package checkout

import (
	"errors"
	"fmt"
	"math"
	"time"

	"checkout-orchestrator/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrSubmitInProgress = errors.New("checkout submission already in progress")
	ErrEmptyCart        = errors.New("cart has no items for this checkout")
	ErrSessionClosed    = errors.New("checkout session closed")
	ErrNoWalletSheet    = errors.New("no wallet sheet awaiting completion")
	ErrTokenNotOwned    = errors.New("discount token not owned by user")
	// ErrPaymentPending rejects a submit for another partition while a
	// payment code is still live.
	ErrPaymentPending   = errors.New("a payment for another checkout is still pending")
)

// OrderCreationError means the order service rejected the payload. No
// baseline is stored when it is returned.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("create order: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

type InsufficientBalanceError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient ledger balance: have %s, need %s",
		e.Balance.StringFixed(2), e.Required.StringFixed(2))
}

type RailUnavailableError struct {
	Rail model.Rail
}

func (e *RailUnavailableError) Error() string {
	return fmt.Sprintf("payment rail %s is not available", e.Rail)
}

// ResourceCooldownError reports a regeneration attempted too early.
type ResourceCooldownError struct {
	OrderID   string
	Remaining time.Duration
}

// Seconds is the remaining cooldown rounded up to whole seconds.
func (e *ResourceCooldownError) Seconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

func (e *ResourceCooldownError) Error() string {
	return fmt.Sprintf("please wait %ds before generating a new payment code", e.Seconds())
}

type ConfirmationTimeoutError struct {
	OrderID   string
	PaymentID string
	Waited    time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("payment %s for order %s not confirmed after %s", e.PaymentID, e.OrderID, e.Waited)
}

// RailError wraps a processor failure with a message fit for the user.
type RailError struct {
	Rail    model.Rail
	Message string
	Err     error
}

func (e *RailError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Rail, e.Message, e.Err)
}

func (e *RailError) Unwrap() error { return e.Err }

// SettlementWarning is a secondary settlement effect that failed after the
// payment itself succeeded.
type SettlementWarning struct {
	Step string
	Err  error
}

func (w *SettlementWarning) Error() string {
	return fmt.Sprintf("settlement %s: %v", w.Step, w.Err)
}

func (w *SettlementWarning) Unwrap() error { return w.Err }

type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid checkout transition %s -> %s", e.From, e.To)
}
