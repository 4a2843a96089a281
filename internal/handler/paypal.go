package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"checkout-orchestrator/internal/client"
	"checkout-orchestrator/internal/service"

	"github.com/labstack/echo/v4"
)

type PaypalHandler struct {
	webhookService service.WebhookService
	logger         *slog.Logger
}

func NewPaypalHandler(webhookService service.WebhookService, logger *slog.Logger) *PaypalHandler {
	return &PaypalHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

const returnPage = `
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8">
		<title>%s</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				text-align: center;
				margin-top: 80px;
			}
		</style>
	</head>
	<body>
		<h2>%s</h2>
		<p>%s</p>
	</body>
	</html>
	`

// HandleSuccess is the PayPal return URL. The checkout that issued the
// payment is notified once the capture completes.
func (h *PaypalHandler) HandleSuccess(c echo.Context) error {
	ctx := c.Request().Context()

	paypalOrderID := c.QueryParam("token")
	if paypalOrderID == "" {
		return c.String(http.StatusBadRequest, "missing order token")
	}

	if err := h.webhookService.CapturePaypalOrder(ctx, paypalOrderID); err != nil {
		h.logger.Error("capture on return failed", "paypal_order_id", paypalOrderID, "error", err)
		return c.HTML(http.StatusOK, fmt.Sprintf(returnPage,
			"Payment Processing", "Payment approved", "We are confirming your payment. You can return to the app."))
	}

	return c.HTML(http.StatusOK, fmt.Sprintf(returnPage,
		"Payment Complete", "Payment complete", "You can return to the app."))
}

func (h *PaypalHandler) HandleCancel(c echo.Context) error {
	return c.HTML(http.StatusOK, fmt.Sprintf(returnPage,
		"Payment Cancelled", "Payment cancelled", "No money was taken. You can return to the app and try again."))
}

func (h *PaypalHandler) PayPalWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.webhookService.HandlePaypalWebhook(ctx, c.Request().Header, body)
	if err != nil {
		return fmt.Errorf("handle webhook: %w", err)
	}

	return c.NoContent(http.StatusOK)
}

func (h *PaypalHandler) CryptoWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.webhookService.HandleCryptoIPN(ctx, c.Request().Header.Get(client.CryptoSignatureHeader), body)
	if err != nil {
		return fmt.Errorf("handle crypto ipn: %w", err)
	}

	return c.NoContent(http.StatusOK)
}
