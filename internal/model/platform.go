package model

import "github.com/shopspring/decimal"

// DiscountToken is a user-owned reward asset granting a percentage discount.
type DiscountToken struct {
	TokenID         string          `json:"token_id"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	OwnerID         string          `json:"owner_id"`
}

type TransferRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	OrderID    string          `json:"order_id"`
}

type TransferResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id"`
	Message   string `json:"message"`
}

type TokenTransfer struct {
	TokenID string `json:"token_id"`
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
}

// PaymentResourceRequest asks a redirect-style processor for a payment
// resource. Amount is in minor units of Currency.
type PaymentResourceRequest struct {
	Rail     Rail
	Amount   int64
	Currency string
	OrderID  string
	UserID   string
	Method   string
	Purpose  string
	WithQR   bool
}

type PaymentResource struct {
	PaymentID string        `json:"payment_id"`
	Rail      Rail          `json:"rail"`
	URL       string        `json:"url,omitempty"`
	QRImage   []byte        `json:"qr_image,omitempty"`
	Status    PaymentStatus `json:"status"`
}

// Job statuses reported by the generation pipeline.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobSuccess    = "success"
	JobFailed     = "failed"
)
