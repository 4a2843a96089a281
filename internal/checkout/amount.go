package checkout

import (
	"checkout-orchestrator/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Amounts holds checkout totals in both units of account at full precision.
type Amounts struct {
	DiscountPercent decimal.Decimal
	SubtotalFiat    decimal.Decimal
	SubtotalTokens  decimal.Decimal
	DiscountFiat    decimal.Decimal
	DiscountTokens  decimal.Decimal
	TotalFiat       decimal.Decimal
	TotalTokens     decimal.Decimal
}

// DisplayAmounts is Amounts rounded to two decimals for presentation.
type DisplayAmounts struct {
	DiscountPercent string `json:"discount_percent"`
	SubtotalFiat    string `json:"subtotal_fiat"`
	SubtotalTokens  string `json:"subtotal_tokens"`
	DiscountFiat    string `json:"discount_fiat"`
	DiscountTokens  string `json:"discount_tokens"`
	TotalFiat       string `json:"total_fiat"`
	TotalTokens     string `json:"total_tokens"`
}

// Calculate prices items with a percentage discount. It has no side effects
// and is recomputed on every use.
func Calculate(items []model.LineItem, pct decimal.Decimal) Amounts {
	a := Amounts{
		DiscountPercent: pct,
		SubtotalFiat:    decimal.Zero,
		SubtotalTokens:  decimal.Zero,
	}
	for _, item := range items {
		qty := decimal.NewFromInt32(item.Quantity)
		a.SubtotalFiat = a.SubtotalFiat.Add(item.UnitFiatPrice.Mul(qty))
		a.SubtotalTokens = a.SubtotalTokens.Add(item.UnitTokenPrice.Mul(qty))
	}

	a.DiscountFiat = a.SubtotalFiat.Mul(pct).Div(hundred)
	a.DiscountTokens = a.SubtotalTokens.Mul(pct).Div(hundred)
	a.TotalFiat = a.SubtotalFiat.Sub(a.DiscountFiat)
	a.TotalTokens = a.SubtotalTokens.Sub(a.DiscountTokens)
	return a
}

func (a Amounts) TotalIn(unit model.CurrencyUnit) decimal.Decimal {
	if unit == model.UnitLedger {
		return a.TotalTokens
	}
	return a.TotalFiat
}

func (a Amounts) DiscountIn(unit model.CurrencyUnit) decimal.Decimal {
	if unit == model.UnitLedger {
		return a.DiscountTokens
	}
	return a.DiscountFiat
}

// FiatMinorUnits is the fiat total in cents, rounded half away from zero.
func (a Amounts) FiatMinorUnits() int64 {
	return a.TotalFiat.Mul(hundred).Round(0).IntPart()
}

func (a Amounts) Display() DisplayAmounts {
	return DisplayAmounts{
		DiscountPercent: a.DiscountPercent.StringFixed(2),
		SubtotalFiat:    a.SubtotalFiat.StringFixed(2),
		SubtotalTokens:  a.SubtotalTokens.StringFixed(2),
		DiscountFiat:    a.DiscountFiat.StringFixed(2),
		DiscountTokens:  a.DiscountTokens.StringFixed(2),
		TotalFiat:       a.TotalFiat.StringFixed(2),
		TotalTokens:     a.TotalTokens.StringFixed(2),
	}
}
