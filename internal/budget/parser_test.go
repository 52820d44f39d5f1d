package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input      string
		amount     string
		unit       string
		normalized string
	}{
		{"$25", "25", "$", "25"},
		{"25 usd", "25", "USD", "25"},
		{"20€", "20", "€", "22"},
		{"EUR 30.50", "30.5", "EUR", "33.55"},
		{"about 40", "40", "$", "40"},
		{"C$100", "100", "C$", "73"},
		{"£10.5", "10.5", "£", "13.34"},
		{"1,500 KES", "1500", "KES", "11.55"},
		{"my budget is 20", "20", "$", "20"},
		{"30 audience", "30", "$", "30"},
		{"30 aud", "30", "AUD", "19.8"},
		{"USD25", "25", "USD", "25"},
		{"25,50€", "25.5", "€", "28.05"},
		{"$25.999", "26", "$", "26"},
		{"€ 19.995", "20", "€", "22"},
		{"1,500usd", "1500", "USD", "1500"},
		{"1,500,000 ₩", "1500000", "₩", "1095"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b, err := Parse(tt.input)
			require.NoError(t, err)

			assert.True(t, b.Amount.Equal(decimal.RequireFromString(tt.amount)), "amount %s", b.Amount)
			assert.Equal(t, tt.unit, b.Unit)
			assert.True(t, b.Normalized.Equal(decimal.RequireFromString(tt.normalized)), "normalized %s", b.Normalized)
			assert.Equal(t, tt.input, b.Raw)
		})
	}
}

func TestParseRejectsTextWithoutNumbers(t *testing.T) {
	for _, input := range []string{"no numbers here", "", "whatever you think"} {
		_, err := Parse(input)
		assert.ErrorIs(t, err, ErrParse, input)
	}
}

func TestBelowMinimum(t *testing.T) {
	min := decimal.NewFromInt(20)

	low, err := Parse("15")
	require.NoError(t, err)
	assert.True(t, low.BelowMinimum(min))

	exact, err := Parse("$20")
	require.NoError(t, err)
	assert.False(t, exact.BelowMinimum(min))

	// 19 EUR is 20.90 USD
	eur, err := Parse("19€")
	require.NoError(t, err)
	assert.False(t, eur.BelowMinimum(min))
}

func TestWordsContainingCodesDoNotTripMinimum(t *testing.T) {
	min := decimal.NewFromInt(20)

	for _, input := range []string{"30 audience", "eurovision 30", "30 for the gbp-free plan"} {
		b, err := Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, ReferenceUnit, b.Unit, input)
		assert.False(t, b.BelowMinimum(min), input)
	}
}

func TestBudgetString(t *testing.T) {
	b, err := Parse("25 usd")
	require.NoError(t, err)
	assert.Equal(t, "25.00 USD", b.String())

	b, err = Parse("€20")
	require.NoError(t, err)
	assert.Equal(t, "€20.00", b.String())
}

func TestCustomRateTable(t *testing.T) {
	p, err := NewParser([]byte(`
currencies:
  - code: EUR
    symbols: ["€"]
    rate: "2"
`))
	require.NoError(t, err)

	b, err := p.Parse("10€")
	require.NoError(t, err)
	assert.Equal(t, "20", b.Normalized.String())

	b, err = p.Parse("10")
	require.NoError(t, err)
	assert.Equal(t, "10", b.Normalized.String())
}

func TestRateTableValidation(t *testing.T) {
	_, err := NewParser([]byte(`currencies: [{code: XXX, rate: "-1"}]`))
	assert.Error(t, err)

	_, err = NewParser([]byte(`currencies: [{code: XXX, rate: "abc"}]`))
	assert.Error(t, err)
}
