package dto

import (
	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/model"
)

type SubmitRequest struct {
	Partition       model.Partition `json:"partition"`
	Rail            model.Rail      `json:"rail"`
	AddressID       string          `json:"address_id"`
	Regenerate      bool            `json:"regenerate"`
	WalletAvailable bool            `json:"wallet_available"`
}

type SubmitResponse struct {
	OrderID         string                  `json:"order_id"`
	OrderCreated    bool                    `json:"order_created"`
	State           checkout.State          `json:"state"`
	Amounts         checkout.DisplayAmounts `json:"amounts"`
	PaymentID       string                  `json:"payment_id,omitempty"`
	PaymentURL      string                  `json:"payment_url,omitempty"`
	QRCode          []byte                  `json:"qr_code,omitempty"`
	WalletSheet     *checkout.WalletSheet   `json:"wallet_sheet,omitempty"`
	Result          *checkout.Result        `json:"result,omitempty"`
	CooldownSeconds int                     `json:"cooldown_seconds"`
}

type AmountsResponse struct {
	Partition       model.Partition         `json:"partition"`
	Amounts         checkout.DisplayAmounts `json:"amounts"`
	DiscountTokenID string                  `json:"discount_token_id,omitempty"`
}

type RailsResponse struct {
	Rails []model.Rail `json:"rails"`
}

type DiscountRequest struct {
	TokenID string `json:"token_id"`
}

type DiscountResponse struct {
	Active  bool   `json:"active"`
	TokenID string `json:"token_id,omitempty"`
}

type WalletSheetRequest struct {
	// Nonce is empty when the user dismissed the sheet.
	Nonce string `json:"nonce"`
}

type JobWatchRequest struct {
	Status string `json:"status"`
}

type JobWatchResponse struct {
	JobID   string `json:"job_id"`
	Polling bool   `json:"polling"`
}

type CartChangedRequest struct {
	UserID string `json:"user_id"`
}

type ErrorResponse struct {
	Error           string `json:"error"`
	CooldownSeconds int    `json:"cooldown_seconds,omitempty"`
}
