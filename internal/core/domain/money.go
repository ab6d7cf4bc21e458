package domain

import "github.com/shopspring/decimal"

// Amounts are int64 minor units (cents). Currencies handled by the ledger
// all use two fractional digits.
const MinorUnitExponent = 2

// FormatAmount renders minor units as a fixed two-digit decimal string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}

// AmountDecimal converts minor units to a decimal value.
func AmountDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// AmountFromDecimal converts a decimal to minor units. ok is false when the
// value carries more precision than the currency allows or overflows int64.
func AmountFromDecimal(d decimal.Decimal) (minor int64, ok bool) {
	shifted := d.Shift(MinorUnitExponent)
	if !shifted.IsInteger() || !shifted.BigInt().IsInt64() {
		return 0, false
	}
	return shifted.IntPart(), true
}
