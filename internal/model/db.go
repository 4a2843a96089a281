package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID         string          `gorm:"primaryKey;size:64;not null"`
	UserID          string          `gorm:"size:64;index;not null"`
	LineItemsHash   string          `gorm:"size:64;index;not null"`
	Partition       string          `gorm:"size:16;not null"` // physical, digital, kiosk
	CurrencyUnit    string          `gorm:"size:8;not null"`  // fiat, ledger
	PaymentMethod   string          `gorm:"size:32;not null"`
	TotalFiat       decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	TotalTokens     decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(20,8);not null"` // in CurrencyUnit
	DiscountTokenID *string         `gorm:"size:64"`
	AddressID       *string         `gorm:"size:64"`
	Status          string          `gorm:"size:32;index;not null"` // PENDING, SETTLED, FAILED
	PaymentID       string          `gorm:"size:64"`                // payment that settled the order
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → order.order_id
	OrderID        string          `gorm:"size:64;index;not null"`
	ProductID      string          `gorm:"size:64;index;not null"`
	VariantID      string          `gorm:"size:64"`
	Quantity       int32           `gorm:"not null"`
	UnitFiatPrice  decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	UnitTokenPrice decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	IsDigital      bool            `gorm:"not null"`

	CreatedAt time.Time
}

// Payment is one minted payment artifact for an order: a redirect link, a
// hosted invoice or a wallet charge.
type Payment struct {
	PaymentID   string          `gorm:"primaryKey;size:64;not null"`
	OrderID     string          `gorm:"size:64;index;not null"`
	UserID      string          `gorm:"size:64;index;not null"`
	Rail        string          `gorm:"size:32;not null"`
	Provider    string          `gorm:"size:32;not null"`       // paypal, crypto, braintree, ledger
	ProviderRef string          `gorm:"size:128;index"`         // provider side id (paypal order id, invoice id)
	URL         string          `gorm:"size:512"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	Currency    string          `gorm:"size:8;not null"`
	Status      string          `gorm:"size:32;index;not null"` // pending, paid, failed
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

const (
	OrderStatusPending = "PENDING"
	OrderStatusSettled = "SETTLED"
	OrderStatusFailed  = "FAILED"
)
