package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/dto"
	"checkout-orchestrator/internal/middleware"
	"checkout-orchestrator/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"cooldown", &checkout.ResourceCooldownError{OrderID: "o", Remaining: 30 * time.Second}, http.StatusTooManyRequests},
		{"insufficient", fmt.Errorf("submit: %w", &checkout.InsufficientBalanceError{}), http.StatusPaymentRequired},
		{"unavailable", &checkout.RailUnavailableError{Rail: model.RailWalletSheetPush}, http.StatusUnprocessableEntity},
		{"order creation", &checkout.OrderCreationError{Err: errors.New("no address")}, http.StatusUnprocessableEntity},
		{"rail", &checkout.RailError{Rail: model.RailQRRedirect, Message: "processor down", Err: errors.New("503")}, http.StatusBadGateway},
		{"busy", checkout.ErrSubmitInProgress, http.StatusConflict},
		{"no sheet", checkout.ErrNoWalletSheet, http.StatusConflict},
		{"other payment live", checkout.ErrPaymentPending, http.StatusConflict},
		{"token", checkout.ErrTokenNotOwned, http.StatusForbidden},
		{"closed", checkout.ErrSessionClosed, http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var he *echo.HTTPError
			require.ErrorAs(t, checkoutError(tt.err), &he)
			assert.Equal(t, tt.code, he.Code)
		})
	}

	plain := errors.New("boom")
	assert.Equal(t, plain, checkoutError(plain))
}

func TestCheckoutError_CooldownCarriesSeconds(t *testing.T) {
	var he *echo.HTTPError
	require.ErrorAs(t, checkoutError(&checkout.ResourceCooldownError{Remaining: 29500 * time.Millisecond}), &he)

	body, ok := he.Message.(dto.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, 30, body.CooldownSeconds)
}

func TestCheckoutError_RailMessageOnly(t *testing.T) {
	var he *echo.HTTPError
	err := &checkout.RailError{Rail: model.RailQRRedirect, Message: "payment provider unavailable", Err: errors.New("dial tcp: secret-host")}
	require.ErrorAs(t, checkoutError(err), &he)
	assert.Equal(t, "payment provider unavailable", he.Message)
}

func newTestHandler(t *testing.T) (*echo.Echo, *CheckoutHandler) {
	cfg := checkout.DefaultConfig()
	cfg.Logger = slogt.New(t)
	registry := checkout.NewRegistry(cfg, checkout.Deps{})
	t.Cleanup(registry.Close)

	return echo.New(), NewCheckoutHandler(registry)
}

func TestCheckoutHandler_StateWithoutSession(t *testing.T) {
	e, h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/state", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.UserIDKey, "user-1")

	require.NoError(t, h.State(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "none", snap["state"])
}

func TestCheckoutHandler_CartChangedRequiresUser(t *testing.T) {
	e, h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/cart-changed", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var he *echo.HTTPError
	require.ErrorAs(t, h.CartChanged(c), &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/internal/cart-changed", strings.NewReader(`{"user_id":"user-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.CartChanged(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckoutHandler_RejectsUnknownPartition(t *testing.T) {
	e, h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/rails?partition=moon", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set(middleware.UserIDKey, "user-1")

	var he *echo.HTTPError
	require.ErrorAs(t, h.Rails(c), &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
