package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/repository"
	"checkout-orchestrator/internal/service"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type webhookHarness struct {
	*paymentHarness
	publisher *recordingPublisher
	webhooks  service.WebhookService
}

// flakyPayments fails the next failUpdates status updates.
type flakyPayments struct {
	repository.PaymentRepository
	failUpdates int
}

func (f *flakyPayments) UpdateStatus(ctx context.Context, tx *gorm.DB, paymentID, status string) (bool, error) {
	if f.failUpdates > 0 {
		f.failUpdates--
		return false, errors.New("database unavailable")
	}
	return f.PaymentRepository.UpdateStatus(ctx, tx, paymentID, status)
}

func newWebhookHarness(t *testing.T) *webhookHarness {
	db := openTestDB(t)
	ph := &paymentHarness{
		paypal: &fakePaypal{},
		crypto: &fakeCrypto{status: model.PaymentPending},
		repo:   &flakyPayments{PaymentRepository: repository.NewPaymentRepository(db)},
		logger: slogt.New(t),
	}
	ph.payments = service.NewPaymentService(ph.paypal, ph.crypto, ph.repo, "https://shop.example", ph.logger)

	h := &webhookHarness{
		paymentHarness: ph,
		publisher:      &recordingPublisher{},
	}
	h.webhooks = service.NewWebhookService(ph.paypal, ph.crypto, ph.repo,
		repository.NewWebhookEventRepository(db), h.publisher, ph.logger)
	return h
}

func TestWebhookService_CaptureCompletedPublishesOnce(t *testing.T) {
	ctx := context.Background()
	h := newWebhookHarness(t)

	res, err := h.payments.CreatePaymentResource(ctx, qrRequest())
	require.NoError(t, err)

	body := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {"id": "CAP-1", "status": "COMPLETED", "invoice_id": "` + res.PaymentID + `"}
	}`)

	require.NoError(t, h.webhooks.HandlePaypalWebhook(ctx, http.Header{}, body))
	require.NoError(t, h.webhooks.HandlePaypalWebhook(ctx, http.Header{}, body))

	events := h.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "user-1", events[0].UserID)
	assert.Equal(t, res.PaymentID, events[0].PaymentID)
	assert.Equal(t, "order-1", events[0].OrderID)
	assert.Equal(t, model.PaymentPaid, events[0].Status)
}

func TestWebhookService_CaptureResolvedByPaypalOrder(t *testing.T) {
	ctx := context.Background()
	h := newWebhookHarness(t)

	res, err := h.payments.CreatePaymentResource(ctx, qrRequest())
	require.NoError(t, err)

	body := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.CAPTURE.DENIED",
		"resource": {"id": "CAP-1", "supplementary_data": {"related_ids": {"order_id": "PP-1"}}}
	}`)
	require.NoError(t, h.webhooks.HandlePaypalWebhook(ctx, http.Header{}, body))

	events := h.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, res.PaymentID, events[0].PaymentID)
	assert.Equal(t, model.PaymentFailed, events[0].Status)
}

func TestWebhookService_ApprovedOrderIsCapturedOnce(t *testing.T) {
	ctx := context.Background()
	h := newWebhookHarness(t)

	_, err := h.payments.CreatePaymentResource(ctx, qrRequest())
	require.NoError(t, err)

	body := []byte(`{"id": "WH-3", "event_type": "CHECKOUT.ORDER.APPROVED", "resource": {"id": "PP-1"}}`)
	require.NoError(t, h.webhooks.HandlePaypalWebhook(ctx, http.Header{}, body))

	// the buyer returning afterwards finds the payment already paid
	require.NoError(t, h.webhooks.CapturePaypalOrder(ctx, "PP-1"))

	assert.Equal(t, []string{"PP-1"}, h.paypal.Captures())
	require.Len(t, h.publisher.Events(), 1)
	assert.Equal(t, model.PaymentPaid, h.publisher.Events()[0].Status)
}

func TestWebhookService_RejectsBadPaypalSignature(t *testing.T) {
	h := newWebhookHarness(t)
	h.paypal.badSig = true

	err := h.webhooks.HandlePaypalWebhook(context.Background(), http.Header{}, []byte(`{"id":"WH-1"}`))
	assert.Error(t, err)
	assert.Empty(t, h.publisher.Events())
}

func TestWebhookService_CryptoIPN(t *testing.T) {
	ctx := context.Background()
	h := newWebhookHarness(t)

	req := qrRequest()
	req.Rail = model.RailOnChainCrypto
	res, err := h.payments.CreatePaymentResource(ctx, req)
	require.NoError(t, err)

	waiting := []byte(`{"payment_id":"np-1","invoice_id":"inv-1","order_id":"order-1","payment_status":"waiting"}`)
	require.NoError(t, h.webhooks.HandleCryptoIPN(ctx, "sig", waiting))
	assert.Empty(t, h.publisher.Events())

	finished := []byte(`{"payment_id":"np-1","invoice_id":"inv-1","order_id":"order-1","payment_status":"finished"}`)
	require.NoError(t, h.webhooks.HandleCryptoIPN(ctx, "sig", finished))
	require.NoError(t, h.webhooks.HandleCryptoIPN(ctx, "sig", finished))

	events := h.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, res.PaymentID, events[0].PaymentID)
	assert.Equal(t, model.PaymentPaid, events[0].Status)

	// a later failure cannot overwrite the paid payment
	failed := []byte(`{"payment_id":"np-1","invoice_id":"inv-1","order_id":"order-1","payment_status":"failed"}`)
	require.NoError(t, h.webhooks.HandleCryptoIPN(ctx, "sig", failed))
	assert.Len(t, h.publisher.Events(), 1)
}

func TestWebhookService_CryptoIPNRetriedAfterFailedUpdate(t *testing.T) {
	ctx := context.Background()
	h := newWebhookHarness(t)

	req := qrRequest()
	req.Rail = model.RailOnChainCrypto
	res, err := h.payments.CreatePaymentResource(ctx, req)
	require.NoError(t, err)

	h.repo.(*flakyPayments).failUpdates = 1
	finished := []byte(`{"payment_id":"np-1","invoice_id":"inv-1","order_id":"order-1","payment_status":"finished"}`)
	require.Error(t, h.webhooks.HandleCryptoIPN(ctx, "sig", finished))
	assert.Empty(t, h.publisher.Events())

	// the provider redelivers the same notification
	require.NoError(t, h.webhooks.HandleCryptoIPN(ctx, "sig", finished))
	events := h.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, res.PaymentID, events[0].PaymentID)
	assert.Equal(t, model.PaymentPaid, events[0].Status)
}

func TestWebhookService_CryptoIPNBadSignature(t *testing.T) {
	h := newWebhookHarness(t)
	h.crypto.badSig = true

	err := h.webhooks.HandleCryptoIPN(context.Background(), "sig", []byte(`{}`))
	assert.Error(t, err)
}
