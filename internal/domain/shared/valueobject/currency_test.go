package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrencyExponent(t *testing.T) {
	t.Run("two minor-unit digits by default", func(t *testing.T) {
		assert.Equal(t, int32(2), USD.Exponent())
		assert.Equal(t, int32(2), EUR.Exponent())
		assert.Equal(t, int32(2), GBP.Exponent())
	})

	t.Run("zero minor-unit digits for JPY", func(t *testing.T) {
		assert.Equal(t, int32(0), JPY.Exponent())
	})

	t.Run("rounds provider amounts to the minor unit", func(t *testing.T) {
		amount := decimal.RequireFromString("8.7450")
		assert.Equal(t, "8.75", amount.Round(USD.Exponent()).String())
		assert.Equal(t, "9", amount.Round(JPY.Exponent()).String())
	})
}

func TestCurrencyString(t *testing.T) {
	assert.Equal(t, "CAD", CAD.String())
	assert.Equal(t, "USD", DefaultCurrency.String())
}
