package service

import (
	"context"
	"log/slog"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/client"
	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/repository"

	"github.com/shopspring/decimal"
)

type walletServiceImpl struct {
	braintreeClient client.BraintreeClient
	paymentRepo     repository.PaymentRepository
	currency        string
	logger          *slog.Logger
}

// NewWalletService backs the wallet sheet rail with Braintree.
func NewWalletService(braintreeClient client.BraintreeClient, paymentRepo repository.PaymentRepository, currency string, logger *slog.Logger) checkout.WalletGateway {
	return &walletServiceImpl{
		braintreeClient: braintreeClient,
		paymentRepo:     paymentRepo,
		currency:        currency,
		logger:          logger,
	}
}

func (s *walletServiceImpl) PrepareSheet(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*checkout.WalletSheet, error) {
	token, err := s.braintreeClient.ClientToken(ctx)
	if err != nil {
		return nil, err
	}
	return &checkout.WalletSheet{
		OrderID:     orderID,
		Amount:      amount.Round(2),
		Currency:    currency,
		ClientToken: token,
	}, nil
}

func (s *walletServiceImpl) Charge(ctx context.Context, orderID, nonce string, amount decimal.Decimal) (string, error) {
	txID, err := s.braintreeClient.ChargeNonce(ctx, orderID, nonce, amount)
	if err != nil {
		return "", err
	}

	err = s.paymentRepo.Create(ctx, nil, &model.Payment{
		PaymentID:   txID,
		OrderID:     orderID,
		Rail:        string(model.RailWalletSheetPush),
		Provider:    ProviderBraintree,
		ProviderRef: txID,
		Amount:      amount,
		Currency:    s.currency,
		Status:      string(model.PaymentPaid),
	})
	if err != nil {
		// the charge went through; the row is bookkeeping only
		s.logger.Error("store wallet payment", "payment_id", txID, "order_id", orderID, "error", err)
	}
	return txID, nil
}
