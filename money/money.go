// Package money converts between decimal currency units, which is how
// amounts are stored, and the integer minor units the payment processor
// speaks.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinor converts an amount to minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Sum adds up amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	tot := decimal.Zero
	for _, a := range amounts {
		tot = tot.Add(a)
	}
	return tot
}
