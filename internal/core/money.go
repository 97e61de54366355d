// Package core provides the domain types shared by the importer, the report
// aggregators and the persistence layer.
//
// Amounts are float64 at rest. Sums are carried out on shopspring decimals so
// that totals built from two-decimal inputs stay exact, and are converted back
// only when a value is emitted.
package core

import "github.com/shopspring/decimal"

// Decimal returns the shortest decimal representation of amount.
func Decimal(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount)
}

// Float converts a sum back into an amount without rounding.
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// Round2 rounds a sum to two decimal places, half away from zero.
func Round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
