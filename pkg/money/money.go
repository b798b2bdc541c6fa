// Package money holds the rounding and tax rules shared by every price calculation.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// VATRate is the fixed value-added tax applied to order subtotals.
var VATRate = decimal.RequireFromString("0.15")

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// VAT returns the rounded tax due on subtotal.
func VAT(subtotal decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(VATRate))
}

// Percent returns part/whole*100 rounded to two places, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return Round(part.Div(whole).Mul(hundred))
}

// Parse reads an amount such as "25", "R25.00" or " 4.17 ".
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Sum adds values; an empty call is zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
