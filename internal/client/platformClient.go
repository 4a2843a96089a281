package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-orchestrator/internal/config"
	"checkout-orchestrator/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlatformClient talks to the platform API that owns carts, ledger
// balances, reward tokens and generation jobs.
type PlatformClient interface {
	LineItems(ctx context.Context, userID string, partition model.Partition) ([]model.LineItem, error)
	Clear(ctx context.Context, userID string, partition model.Partition) error
	Transfer(ctx context.Context, req *model.TransferRequest) (*model.TransferResult, error)
	TransferToken(ctx context.Context, req *model.TokenTransfer) error
	OwnedTokens(ctx context.Context, userID string) ([]model.DiscountToken, error)
	FetchBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	JobStatus(ctx context.Context, jobID string) (string, error)
}

// StatusError is a non-2xx platform response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform error %d: %s", e.Code, e.Body)
}

type platformClientImpl struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	maxRetryTime time.Duration
}

func NewPlatformClient(cfg *config.Platform) PlatformClient {
	return &platformClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		maxRetryTime: cfg.MaxRetryTime,
	}
}

func (c *platformClientImpl) do(ctx context.Context, method, path string, payload, out any) error {
	return c.doKeyed(ctx, method, path, uuid.NewString(), payload, out)
}

// doKeyed sends a JSON request, retrying network errors and 5xx responses
// with exponential backoff. Every attempt carries idempotencyKey.
func (c *platformClientImpl) doKeyed(ctx context.Context, method, path, idempotencyKey string, payload, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = b
	}

	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("http new request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("platform request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			serr := &StatusError{Code: resp.StatusCode, Body: string(b)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return serr
			}
			return backoff.Permanent(serr)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode platform response: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = c.maxRetryTime
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func userPath(userID, suffix string) string {
	return "/v1/users/" + url.PathEscape(userID) + suffix
}

func (c *platformClientImpl) LineItems(ctx context.Context, userID string, partition model.Partition) ([]model.LineItem, error) {
	var res struct {
		Items []model.LineItem `json:"items"`
	}
	path := userPath(userID, "/cart?partition="+url.QueryEscape(string(partition)))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return model.FilterPartition(res.Items, partition), nil
}

func (c *platformClientImpl) Clear(ctx context.Context, userID string, partition model.Partition) error {
	path := userPath(userID, "/cart?partition="+url.QueryEscape(string(partition)))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Transfer moves ledger tokens between accounts. A declined transfer is a
// result with Success false, not an error. The idempotency key is derived
// from the order so a repeated transfer for one order is charged once.
func (c *platformClientImpl) Transfer(ctx context.Context, req *model.TransferRequest) (*model.TransferResult, error) {
	var res model.TransferResult
	err := c.doKeyed(ctx, http.MethodPost, "/v1/ledger/transfers", "ledger-transfer:"+req.OrderID, req, &res)
	var serr *StatusError
	switch {
	case errors.As(err, &serr) && (serr.Code == http.StatusPaymentRequired || serr.Code == http.StatusConflict):
		return &model.TransferResult{Success: false, Message: declineMessage(serr.Body)}, nil
	case err != nil:
		return nil, fmt.Errorf("ledger transfer: %w", err)
	}
	return &res, nil
}

func declineMessage(body string) string {
	var res struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &res); err == nil && res.Message != "" {
		return res.Message
	}
	return "transfer declined"
}

func (c *platformClientImpl) TransferToken(ctx context.Context, req *model.TokenTransfer) error {
	key := "token-transfer:" + req.TokenID + ":" + req.OrderID
	if err := c.doKeyed(ctx, http.MethodPost, "/v1/tokens/transfers", key, req, nil); err != nil {
		return fmt.Errorf("transfer token: %w", err)
	}
	return nil
}

func (c *platformClientImpl) OwnedTokens(ctx context.Context, userID string) ([]model.DiscountToken, error) {
	var res struct {
		Tokens []model.DiscountToken `json:"tokens"`
	}
	if err := c.do(ctx, http.MethodGet, userPath(userID, "/tokens"), nil, &res); err != nil {
		return nil, fmt.Errorf("get owned tokens: %w", err)
	}
	return res.Tokens, nil
}

func (c *platformClientImpl) FetchBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var res struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, userPath(userID, "/balance"), nil, &res); err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return res.Balance, nil
}

func (c *platformClientImpl) JobStatus(ctx context.Context, jobID string) (string, error) {
	var res struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &res); err != nil {
		return "", fmt.Errorf("get job status: %w", err)
	}
	return res.Status, nil
}
