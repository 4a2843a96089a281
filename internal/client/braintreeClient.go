package client

import (
	"context"
	"fmt"

	"checkout-orchestrator/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

type BraintreeClient interface {
	// ClientToken returns the token the wallet sheet is initialized with.
	ClientToken(ctx context.Context) (string, error)

	// ChargeNonce settles a one-time wallet nonce for amount.
	ChargeNonce(ctx context.Context, orderID, nonce string, amount decimal.Decimal) (string, error)
}

type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

func NewBraintreeClient(cfg *config.Braintree) BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

func (c *braintreeClientImpl) ClientToken(ctx context.Context) (string, error) {
	token, err := c.gateway.ClientToken().Generate(ctx)
	if err != nil {
		return "", fmt.Errorf("generate braintree client token: %w", err)
	}
	return token, nil
}

func (c *braintreeClientImpl) ChargeNonce(ctx context.Context, orderID, nonce string, amount decimal.Decimal) (string, error) {
	// Braintree expects NewDecimal(unscaled, scale): 50.00 -> NewDecimal(5000, 2)
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	btAmount := braintree.NewDecimal(cents, 2)

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             btAmount,
		PaymentMethodNonce: nonce,
		OrderId:            orderID,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transaction creation failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined || tx.Status == braintree.TransactionStatusGatewayRejected {
		return "", fmt.Errorf("transaction declined by processor: %s", tx.ProcessorResponseText)
	}

	return tx.Id, nil
}
