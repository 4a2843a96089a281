package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkout-orchestrator/internal/config"
	"checkout-orchestrator/internal/model"

	"github.com/shopspring/decimal"
)

// CryptoSignatureHeader carries the HMAC of an IPN body.
const CryptoSignatureHeader = "X-Nowpayments-Sig"

var ErrInvalidSignature = errors.New("invalid signature")

type CryptoClient interface {
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*model.CryptoInvoice, error)
	InvoiceStatus(ctx context.Context, invoiceID string) (model.PaymentStatus, error)
	VerifyIPN(body []byte, signature string) error
}

type CreateInvoiceRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Description string
	CallbackURL string
	SuccessURL  string
	CancelURL   string
}

type cryptoClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	apiKey        string
	ipnSecret     string
	priceCurrency string
}

func NewCryptoClient(cfg *config.Crypto) CryptoClient {
	return &cryptoClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:    strings.TrimRight(cfg.BaseApiURL, "/"),
		apiKey:        cfg.APIKey,
		ipnSecret:     cfg.IPNSecret,
		priceCurrency: cfg.PriceCurrency,
	}
}

func (c *cryptoClientImpl) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crypto request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("crypto processor error %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode crypto response: %w", err)
	}
	return nil
}

func (c *cryptoClientImpl) CreateInvoice(ctx context.Context, in *CreateInvoiceRequest) (*model.CryptoInvoice, error) {
	payload := map[string]any{
		"price_amount":      in.Amount.StringFixed(2),
		"price_currency":    c.priceCurrency,
		"order_id":          in.OrderID,
		"order_description": in.Description,
		"ipn_callback_url":  in.CallbackURL,
		"success_url":       in.SuccessURL,
		"cancel_url":        in.CancelURL,
	}

	var invoice model.CryptoInvoice
	if err := c.do(ctx, http.MethodPost, "/v1/invoice", payload, &invoice); err != nil {
		return nil, err
	}
	if invoice.ID == "" || invoice.InvoiceURL == "" {
		return nil, errors.New("crypto processor returned an incomplete invoice")
	}
	return &invoice, nil
}

func (c *cryptoClientImpl) InvoiceStatus(ctx context.Context, invoiceID string) (model.PaymentStatus, error) {
	var invoice model.CryptoInvoice
	if err := c.do(ctx, http.MethodGet, "/v1/invoice/"+invoiceID, nil, &invoice); err != nil {
		return "", err
	}
	return CryptoPaymentStatus(invoice.Status), nil
}

// VerifyIPN checks the HMAC-SHA512 of the body re-encoded with sorted keys.
func (c *cryptoClientImpl) VerifyIPN(body []byte, signature string) error {
	if c.ipnSecret == "" || signature == "" {
		return ErrInvalidSignature
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("decode ipn body: %w", err)
	}
	// encoding/json writes map keys in sorted order
	sorted, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode ipn body: %w", err)
	}

	mac := hmac.New(sha512.New, []byte(c.ipnSecret))
	mac.Write(sorted)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// CryptoPaymentStatus maps processor statuses onto payment statuses.
func CryptoPaymentStatus(status string) model.PaymentStatus {
	switch strings.ToLower(status) {
	case "finished", "confirmed":
		return model.PaymentPaid
	case "failed", "expired", "refunded":
		return model.PaymentFailed
	}
	return model.PaymentPending
}
