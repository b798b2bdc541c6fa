package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"4.165":   "4.17",
		"4.1666":  "4.17",
		"4.164":   "4.16",
		"-4.165":  "-4.17",
		"12.5":    "12.5",
		"0.005":   "0.01",
		"100.994": "100.99",
	}
	for in, want := range cases {
		assert.True(t, Round(d(in)).Equal(d(want)), "Round(%s) = %s, want %s", in, Round(d(in)), want)
	}
}

func TestVAT(t *testing.T) {
	assert.True(t, VAT(d("50.00")).Equal(d("7.50")))
	assert.True(t, VAT(d("50.04")).Equal(d("7.51")))
	assert.True(t, VAT(d("0")).IsZero())
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(d("25"), d("100")).Equal(d("25")))
	assert.True(t, Percent(d("1"), d("3")).Equal(d("33.33")))
	assert.True(t, Percent(d("5"), decimal.Zero).IsZero())
}

func TestParse(t *testing.T) {
	v, err := Parse(" R1,250.50 ")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("1250.50")))

	_, err = Parse("")
	assert.Error(t, err)
	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestSum(t *testing.T) {
	assert.True(t, Sum(d("1.10"), d("2.20"), d("3.30")).Equal(d("6.60")))
	assert.True(t, Sum().IsZero())
}
