package model

import "github.com/shopspring/decimal"

// Partition is the slice of the cart a checkout pays for.
type Partition string

const (
	PartitionPhysical Partition = "physical"
	PartitionDigital  Partition = "digital"
	PartitionKiosk    Partition = "kiosk"
)

func (p Partition) Valid() bool {
	switch p {
	case PartitionPhysical, PartitionDigital, PartitionKiosk:
		return true
	}
	return false
}

// CurrencyUnit is the unit of account an order total is expressed in.
type CurrencyUnit string

const (
	UnitFiat   CurrencyUnit = "fiat"
	UnitLedger CurrencyUnit = "ledger"
)

type Rail string

const (
	RailQRRedirect      Rail = "QR_REDIRECT"
	RailCardRedirect    Rail = "CARD_REDIRECT"
	RailLedgerTransfer  Rail = "LEDGER_TRANSFER"
	RailOnChainCrypto   Rail = "ON_CHAIN_CRYPTO"
	RailWalletSheetPush Rail = "WALLET_SHEET_PUSH"
	RailWalletSheetQR   Rail = "WALLET_SHEET_QR"
	RailCashOnDelivery  Rail = "CASH_ON_DELIVERY"
)

// Rails lists every rail in display order.
var Rails = []Rail{
	RailQRRedirect,
	RailCardRedirect,
	RailWalletSheetPush,
	RailWalletSheetQR,
	RailOnChainCrypto,
	RailLedgerTransfer,
	RailCashOnDelivery,
}

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentPaid        PaymentStatus = "paid"
	PaymentFailed      PaymentStatus = "failed"
	PaymentCashPending PaymentStatus = "cash_pending"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed || s == PaymentCashPending
}

// LineItem is an immutable snapshot of one cart row taken at submit time.
type LineItem struct {
	ProductID      string          `json:"product_id"`
	VariantID      string          `json:"variant_id"`
	Quantity       int32           `json:"quantity"`
	UnitFiatPrice  decimal.Decimal `json:"unit_fiat_price"`
	UnitTokenPrice decimal.Decimal `json:"unit_token_price"`
	IsDigital      bool            `json:"is_digital"`
}

// RequiresShipping reports whether the item is delivered physically.
func (i LineItem) RequiresShipping() bool {
	return !i.IsDigital
}

// FilterPartition returns the items belonging to p. Kiosk carts are
// returned unchanged.
func FilterPartition(items []LineItem, p Partition) []LineItem {
	if p == PartitionKiosk {
		return items
	}
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.IsDigital == (p == PartitionDigital) {
			out = append(out, item)
		}
	}
	return out
}

// OrderPayload is what the order service receives to create an order.
type OrderPayload struct {
	UserID          string
	LineItemsHash   string
	Partition       Partition
	CurrencyUnit    CurrencyUnit
	PaymentMethod   string
	Total           decimal.Decimal // in CurrencyUnit
	TotalFiat       decimal.Decimal
	TotalTokens     decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal // in CurrencyUnit
	DiscountTokenID string
	AddressID       string
	Items           []LineItem
}
