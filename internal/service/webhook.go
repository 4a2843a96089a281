package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"checkout-orchestrator/internal/client"
	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/push"
	"checkout-orchestrator/internal/repository"

	"gorm.io/gorm"
)

// Publisher delivers payment status events to listening checkouts.
type Publisher interface {
	Publish(ev push.Event) int
}

type WebhookService interface {
	HandlePaypalWebhook(ctx context.Context, headers http.Header, body []byte) error
	// CapturePaypalOrder captures an approved PayPal order when the buyer
	// returns from the approval page.
	CapturePaypalOrder(ctx context.Context, paypalOrderID string) error
	HandleCryptoIPN(ctx context.Context, signature string, body []byte) error
}

type webhookServiceImpl struct {
	paypalClient     client.PaypalClient
	cryptoClient     client.CryptoClient
	paymentRepo      repository.PaymentRepository
	webhookEventRepo repository.WebhookEventRepository
	publisher        Publisher
	logger           *slog.Logger
}

func NewWebhookService(
	paypalClient client.PaypalClient,
	cryptoClient client.CryptoClient,
	paymentRepo repository.PaymentRepository,
	webhookEventRepo repository.WebhookEventRepository,
	publisher Publisher,
	logger *slog.Logger,
) WebhookService {
	return &webhookServiceImpl{
		paypalClient:     paypalClient,
		cryptoClient:     cryptoClient,
		paymentRepo:      paymentRepo,
		webhookEventRepo: webhookEventRepo,
		publisher:        publisher,
		logger:           logger,
	}
}

func (s *webhookServiceImpl) HandlePaypalWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.paypalClient.VerifyWebhookSignature(ctx, headers, body); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	var event model.PayPalWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	seen, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		s.logger.Debug("duplicate paypal webhook", "event_id", event.ID)
		return nil
	}

	s.logger.Info("paypal webhook", "event_id", event.ID, "event_type", event.EventType)

	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		err = s.CapturePaypalOrder(ctx, event.Resource.ID)
	case "PAYMENT.CAPTURE.COMPLETED":
		err = s.settlePaypalCapture(ctx, &event.Resource, model.PaymentPaid)
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		err = s.settlePaypalCapture(ctx, &event.Resource, model.PaymentFailed)
	}
	if err != nil {
		return err
	}

	if _, err := s.webhookEventRepo.MarkProcessed(ctx, nil, event.ID, event.EventType); err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

func (s *webhookServiceImpl) CapturePaypalOrder(ctx context.Context, paypalOrderID string) error {
	payment, err := s.paymentRepo.FindByProviderRef(ctx, ProviderPaypal, paypalOrderID)
	if err != nil {
		return fmt.Errorf("find payment for paypal order %s: %w", paypalOrderID, err)
	}
	if model.PaymentStatus(payment.Status).Terminal() {
		return nil
	}

	resp, err := s.paypalClient.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		return fmt.Errorf("paypal api capture order: %w", err)
	}
	if resp.Status == "COMPLETED" {
		return s.updateStatus(ctx, payment, model.PaymentPaid)
	}
	return nil
}

// settlePaypalCapture resolves the payment from the capture's invoice id,
// falling back to the related PayPal order id.
func (s *webhookServiceImpl) settlePaypalCapture(ctx context.Context, resource *model.PaypalResource, status model.PaymentStatus) error {
	var (
		payment *model.Payment
		err     error
	)
	if resource.InvoiceID != "" {
		payment, err = s.paymentRepo.FindByPaymentID(ctx, resource.InvoiceID)
	}
	if payment == nil {
		orderID := resource.SupplementaryData.RelatedIDs.OrderID
		if orderID == "" {
			return fmt.Errorf("could not find order_id in webhook payload")
		}
		payment, err = s.paymentRepo.FindByProviderRef(ctx, ProviderPaypal, orderID)
	}
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}
	return s.updateStatus(ctx, payment, status)
}

func (s *webhookServiceImpl) HandleCryptoIPN(ctx context.Context, signature string, body []byte) error {
	if err := s.cryptoClient.VerifyIPN(body, signature); err != nil {
		return fmt.Errorf("verify ipn: %w", err)
	}

	var ipn model.CryptoIPN
	if err := json.Unmarshal(body, &ipn); err != nil {
		return fmt.Errorf("decode ipn payload: %w", err)
	}

	status := client.CryptoPaymentStatus(ipn.PaymentStatus)
	if !status.Terminal() {
		return nil
	}

	payment, err := s.paymentRepo.FindByProviderRef(ctx, ProviderCrypto, ipn.InvoiceID)
	if err != nil {
		return fmt.Errorf("find payment for invoice %s: %w", ipn.InvoiceID, err)
	}

	eventID := "crypto:" + ipn.PaymentID + ":" + ipn.PaymentStatus
	seen, err := s.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check ipn event: %w", err)
	}
	if seen {
		s.logger.Debug("duplicate crypto ipn", "event_id", eventID)
		return nil
	}

	if err := s.updateStatus(ctx, payment, status); err != nil {
		return err
	}
	if _, err := s.webhookEventRepo.MarkProcessed(ctx, nil, eventID, ipn.PaymentStatus); err != nil {
		return fmt.Errorf("mark ipn processed: %w", err)
	}
	return nil
}

// updateStatus records a terminal status once and notifies the payment room.
func (s *webhookServiceImpl) updateStatus(ctx context.Context, payment *model.Payment, status model.PaymentStatus) error {
	changed, err := s.paymentRepo.UpdateStatus(ctx, nil, payment.PaymentID, string(status))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("update payment status: %w", err)
	}
	if !changed {
		return nil
	}

	delivered := s.publisher.Publish(push.Event{
		UserID:    payment.UserID,
		PaymentID: payment.PaymentID,
		OrderID:   payment.OrderID,
		Status:    status,
	})
	s.logger.Info("payment status updated",
		"payment_id", payment.PaymentID, "order_id", payment.OrderID, "status", status, "listeners", delivered)
	return nil
}
