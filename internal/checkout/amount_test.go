package checkout_test

import (
	"testing"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	items := []model.LineItem{
		item("shirt", 2, "25.00", "20", false),
		item("mug", 1, "50.00", "40", false),
	}

	t.Run("no discount", func(t *testing.T) {
		a := checkout.Calculate(items, decimal.Zero)
		assert.True(t, a.SubtotalFiat.Equal(dec("100")))
		assert.True(t, a.SubtotalTokens.Equal(dec("80")))
		assert.True(t, a.DiscountFiat.IsZero())
		assert.True(t, a.TotalFiat.Equal(dec("100")))
		assert.True(t, a.TotalTokens.Equal(dec("80")))
	})

	t.Run("twenty percent", func(t *testing.T) {
		a := checkout.Calculate(items, dec("20"))
		assert.True(t, a.DiscountFiat.Equal(dec("20")))
		assert.True(t, a.DiscountTokens.Equal(dec("16")))
		assert.True(t, a.TotalFiat.Equal(dec("80")))
		assert.True(t, a.TotalTokens.Equal(dec("64")))
	})

	t.Run("empty cart", func(t *testing.T) {
		a := checkout.Calculate(nil, dec("50"))
		assert.True(t, a.TotalFiat.IsZero())
		assert.True(t, a.TotalTokens.IsZero())
	})
}

func TestCalculateDiscountIsProportional(t *testing.T) {
	subtotals := []string{"0.01", "9.99", "100", "1234.56"}
	percents := []string{"0", "5", "12.5", "33", "100"}

	for _, sub := range subtotals {
		for _, pct := range percents {
			items := []model.LineItem{item("p", 1, sub, sub, false)}
			a := checkout.Calculate(items, dec(pct))

			want := dec(sub).Mul(dec(pct)).Div(decimal.NewFromInt(100))
			assert.True(t, a.DiscountFiat.Equal(want), "subtotal %s pct %s: got %s", sub, pct, a.DiscountFiat)
			assert.True(t, a.TotalFiat.Add(a.DiscountFiat).Equal(a.SubtotalFiat))
			assert.True(t, a.TotalTokens.Add(a.DiscountTokens).Equal(a.SubtotalTokens))
		}
	}
}

func TestAmountsDisplayRoundsOnlyForPresentation(t *testing.T) {
	items := []model.LineItem{item("p", 3, "0.333", "1.005", false)}
	a := checkout.Calculate(items, decimal.Zero)

	assert.True(t, a.TotalFiat.Equal(dec("0.999")))
	d := a.Display()
	assert.Equal(t, "1.00", d.TotalFiat)
	assert.Equal(t, "3.02", d.TotalTokens)
	assert.Equal(t, "0.00", d.DiscountPercent)
}

func TestAmountsUnits(t *testing.T) {
	a := checkout.Calculate([]model.LineItem{item("p", 1, "42.505", "10", false)}, decimal.Zero)

	assert.Equal(t, int64(4251), a.FiatMinorUnits())
	assert.True(t, a.TotalIn(model.UnitLedger).Equal(dec("10")))
	assert.True(t, a.TotalIn(model.UnitFiat).Equal(dec("42.505")))
}

func TestDiscountSelectorToggle(t *testing.T) {
	var d checkout.DiscountSelector
	t20 := model.DiscountToken{TokenID: "t20", DiscountPercent: dec("20"), OwnerID: testUser}
	t10 := model.DiscountToken{TokenID: "t10", DiscountPercent: dec("10"), OwnerID: testUser}

	active, err := d.Toggle(t20)
	require.NoError(t, err)
	assert.True(t, active)
	assert.True(t, d.Percent().Equal(dec("20")))

	active, err = d.Toggle(t10)
	require.NoError(t, err)
	assert.True(t, active)
	got, ok := d.Active()
	require.True(t, ok)
	assert.Equal(t, "t10", got.TokenID)

	active, err = d.Toggle(t10)
	require.NoError(t, err)
	assert.False(t, active)
	assert.True(t, d.Percent().IsZero())

	_, err = d.Toggle(model.DiscountToken{TokenID: "bad", DiscountPercent: dec("101")})
	require.Error(t, err)
	_, ok = d.Active()
	assert.False(t, ok)
}
