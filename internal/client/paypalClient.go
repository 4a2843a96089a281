package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"checkout-orchestrator/internal/config"
	"checkout-orchestrator/internal/model"
)

type PaypalClient interface {
	CreateOrder(ctx context.Context, req *CreatePaypalOrderRequest) (*CreateOrderResponse, error)
	GetOrder(ctx context.Context, paypalOrderID string) (*model.PaypalResult, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (*CaptureOrderResponse, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
	webhookID          string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// CreatePaypalOrderRequest is a single purchase unit checkout. Value is a
// decimal string in Currency.
type CreatePaypalOrderRequest struct {
	ReferenceID string
	CustomID    string
	InvoiceID   string
	Currency    string
	Value       string
	Description string
	ReturnURL   string
	CancelURL   string
}

type CreateOrderResponse struct {
	OrderID    string
	ApproveURL string
}

type CaptureOrderResponse struct {
	Status    string
	CaptureID string
}

func NewPaypalClient(paypalCfg *config.Paypal) PaypalClient {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:         strings.TrimRight(paypalCfg.BaseApiURL, "/"),
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
		webhookID:          paypalCfg.WebhookID,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal token error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.accessToken = res.AccessToken
	// refresh a minute early
	c.expiresAt = time.Now().Add(time.Duration(res.ExpiresIn)*time.Second - time.Minute)
	return res.AccessToken, nil
}

// do sends an authorized JSON request and decodes a 2xx response into out.
func (c *paypalClientImpl) do(ctx context.Context, method, path string, payload, out any) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get paypal access token: %w", err)
	}

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
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal error %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

func (c *paypalClientImpl) CreateOrder(ctx context.Context, in *CreatePaypalOrderRequest) (*CreateOrderResponse, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": in.ReferenceID,
				"custom_id":    in.CustomID,
				"invoice_id":   in.InvoiceID,
				"description":  in.Description,
				"amount": model.Amount{
					Currency: in.Currency,
					Value:    in.Value,
				},
			},
		},
		"application_context": map[string]string{
			"return_url":  in.ReturnURL,
			"cancel_url":  in.CancelURL,
			"user_action": "PAY_NOW",
		},
	}

	var result model.PaypalResult
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &result); err != nil {
		return nil, err
	}

	approveURL := extractApproveURL(result.Links)
	if approveURL == "" {
		return nil, fmt.Errorf("paypal order %s has no approve link", result.ID)
	}

	return &CreateOrderResponse{
		OrderID:    result.ID,
		ApproveURL: approveURL,
	}, nil
}

func (c *paypalClientImpl) GetOrder(ctx context.Context, paypalOrderID string) (*model.PaypalResult, error) {
	var result model.PaypalResult
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+paypalOrderID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *paypalClientImpl) CaptureOrder(ctx context.Context, paypalOrderID string) (*CaptureOrderResponse, error) {
	var result struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}

	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", paypalOrderID)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{}, &result); err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}

	resp := &CaptureOrderResponse{Status: result.Status}
	for _, pu := range result.PurchaseUnits {
		for _, capture := range pu.Payments.Captures {
			resp.CaptureID = capture.ID
		}
	}
	return resp, nil
}

func (c *paypalClientImpl) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	payload := map[string]any{
		"auth_algo":         headers.Get("PAYPAL-AUTH-ALGO"),
		"cert_url":          headers.Get("PAYPAL-CERT-URL"),
		"transmission_id":   headers.Get("PAYPAL-TRANSMISSION-ID"),
		"transmission_sig":  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		"transmission_time": headers.Get("PAYPAL-TRANSMISSION-TIME"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &result); err != nil {
		return err
	}
	if result.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("webhook signature verification status %q", result.VerificationStatus)
	}
	return nil
}

func extractApproveURL(links []model.PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}
