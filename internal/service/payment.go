package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"checkout-orchestrator/internal/client"
	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ProviderPaypal    = "paypal"
	ProviderCrypto    = "crypto"
	ProviderBraintree = "braintree"
)

var ErrUnsupportedRail = errors.New("rail has no payment provider")

type PaymentService interface {
	CreatePaymentResource(ctx context.Context, req *model.PaymentResourceRequest) (*model.PaymentResource, error)
	PaymentStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error)
}

type paymentServiceImpl struct {
	paypalClient client.PaypalClient
	cryptoClient client.CryptoClient
	paymentRepo  repository.PaymentRepository
	serviceBase  string
	logger       *slog.Logger
}

func NewPaymentService(
	paypalClient client.PaypalClient,
	cryptoClient client.CryptoClient,
	paymentRepo repository.PaymentRepository,
	serviceBaseUrl string,
	logger *slog.Logger,
) PaymentService {
	return &paymentServiceImpl{
		paypalClient: paypalClient,
		cryptoClient: cryptoClient,
		paymentRepo:  paymentRepo,
		serviceBase:  serviceBaseUrl,
		logger:       logger,
	}
}

func (s *paymentServiceImpl) CreatePaymentResource(ctx context.Context, req *model.PaymentResourceRequest) (*model.PaymentResource, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", req.Amount)
	}
	amount := decimal.New(req.Amount, -2)
	paymentID := uuid.NewString()

	row := &model.Payment{
		PaymentID: paymentID,
		OrderID:   req.OrderID,
		UserID:    req.UserID,
		Rail:      string(req.Rail),
		Amount:    amount,
		Currency:  req.Currency,
		Status:    string(model.PaymentPending),
	}

	switch req.Rail {
	case model.RailQRRedirect, model.RailCardRedirect, model.RailWalletSheetQR:
		resp, err := s.paypalClient.CreateOrder(ctx, &client.CreatePaypalOrderRequest{
			ReferenceID: req.OrderID,
			CustomID:    req.OrderID,
			InvoiceID:   paymentID,
			Currency:    req.Currency,
			Value:       amount.StringFixed(2),
			Description: fmt.Sprintf("%s %s", req.Purpose, req.Method),
			ReturnURL:   s.serviceBase + "/api/paypal/success",
			CancelURL:   s.serviceBase + "/api/paypal/cancel",
		})
		if err != nil {
			return nil, fmt.Errorf("paypal api create order: %w", err)
		}
		row.Provider = ProviderPaypal
		row.ProviderRef = resp.OrderID
		row.URL = resp.ApproveURL

	case model.RailOnChainCrypto:
		invoice, err := s.cryptoClient.CreateInvoice(ctx, &client.CreateInvoiceRequest{
			OrderID:     req.OrderID,
			Amount:      amount,
			Description: req.Purpose,
			CallbackURL: s.serviceBase + "/api/crypto/webhook",
			SuccessURL:  s.serviceBase + "/",
			CancelURL:   s.serviceBase + "/",
		})
		if err != nil {
			return nil, fmt.Errorf("crypto create invoice: %w", err)
		}
		row.Provider = ProviderCrypto
		row.ProviderRef = invoice.ID
		row.URL = invoice.InvoiceURL

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRail, req.Rail)
	}

	res := &model.PaymentResource{
		PaymentID: paymentID,
		Rail:      req.Rail,
		URL:       row.URL,
		Status:    model.PaymentPending,
	}
	if req.WithQR {
		png, err := client.EncodeQR(row.URL)
		if err != nil {
			return nil, err
		}
		res.QRImage = png
	}

	if err := s.paymentRepo.Create(ctx, nil, row); err != nil {
		return nil, fmt.Errorf("store payment resource: %w", err)
	}

	s.logger.Info("payment resource created",
		"payment_id", paymentID, "order_id", req.OrderID, "rail", req.Rail, "provider", row.Provider)
	return res, nil
}

// PaymentStatus returns the stored status, asking the provider when the
// payment is still pending.
func (s *paymentServiceImpl) PaymentStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	row, err := s.paymentRepo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return "", fmt.Errorf("find payment: %w", err)
	}
	status := model.PaymentStatus(row.Status)
	if status.Terminal() {
		return status, nil
	}

	switch row.Provider {
	case ProviderPaypal:
		status, err = s.paypalStatus(ctx, row.ProviderRef)
	case ProviderCrypto:
		status, err = s.cryptoClient.InvoiceStatus(ctx, row.ProviderRef)
	default:
		return status, nil
	}
	if err != nil {
		return "", err
	}

	if status.Terminal() {
		if _, err := s.paymentRepo.UpdateStatus(ctx, nil, paymentID, string(status)); err != nil {
			return "", fmt.Errorf("update payment status: %w", err)
		}
	}
	return status, nil
}

func (s *paymentServiceImpl) paypalStatus(ctx context.Context, paypalOrderID string) (model.PaymentStatus, error) {
	order, err := s.paypalClient.GetOrder(ctx, paypalOrderID)
	if err != nil {
		return "", fmt.Errorf("paypal get order: %w", err)
	}
	return PaypalOrderStatus(order.Status), nil
}

// PaypalOrderStatus maps a PayPal order status onto a payment status.
// APPROVED orders are still pending until captured.
func PaypalOrderStatus(status string) model.PaymentStatus {
	switch status {
	case "COMPLETED":
		return model.PaymentPaid
	case "VOIDED":
		return model.PaymentFailed
	}
	return model.PaymentPending
}
