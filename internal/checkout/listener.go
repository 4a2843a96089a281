package checkout

import (
	"context"
	"errors"
	"time"

	"checkout-orchestrator/internal/model"

	"github.com/cenkalti/backoff/v4"
)

var errStillPending = errors.New("payment still pending")

// watch waits for the terminal status event of att's payment room. If none
// arrives within ConfirmationTimeout the authoritative status is
// reconciled once with backoff before giving up.
func (s *Session) watch(ctx context.Context, att *attempt) {
	timer := time.NewTimer(s.cfg.ConfirmationTimeout)
	defer timer.Stop()

	paymentID := att.paymentID()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-att.sub.Events():
			if !ok {
				return
			}
			if ev.PaymentID != paymentID {
				continue
			}
			switch ev.Status {
			case model.PaymentPaid:
				s.confirm(ctx, att, paymentID, model.PaymentPaid)
				return
			case model.PaymentFailed:
				s.fail(ctx, att, &RailError{Rail: att.spec.Rail, Message: "payment was not completed", Err: errors.New("processor reported failure")})
				return
			}

		case <-timer.C:
			switch status := s.reconcile(ctx, paymentID); status {
			case model.PaymentPaid:
				s.confirm(ctx, att, paymentID, model.PaymentPaid)
			case model.PaymentFailed:
				s.fail(ctx, att, &RailError{Rail: att.spec.Rail, Message: "payment was not completed", Err: errors.New("processor reported failure")})
			default:
				if ctx.Err() != nil {
					return
				}
				s.fail(ctx, att, &ConfirmationTimeoutError{
					OrderID:   att.orderID,
					PaymentID: paymentID,
					Waited:    s.cfg.ConfirmationTimeout,
				})
			}
			return
		}
	}
}

// reconcile asks the payment status checker until it reports a terminal
// status or ReconcileMaxElapsed passes.
func (s *Session) reconcile(ctx context.Context, paymentID string) model.PaymentStatus {
	if s.deps.Statuses == nil {
		return model.PaymentPending
	}

	status := model.PaymentPending
	op := func() error {
		st, err := s.deps.Statuses.PaymentStatus(ctx, paymentID)
		if err != nil {
			return err
		}
		if !st.Terminal() {
			return errStillPending
		}
		status = st
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.cfg.ReconcileMaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		s.logger.Info("payment not confirmed after reconcile", "payment_id", paymentID, "error", err)
		return model.PaymentPending
	}
	return status
}
