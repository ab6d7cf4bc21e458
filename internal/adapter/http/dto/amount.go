package dto

import (
	"bytes"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Amount is a money value in minor units. On the wire it is a decimal number
// with at most two fractional digits; quoted strings are accepted too.
type Amount int64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(domain.FormatAmount(int64(a))), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(raw) == 0 || string(raw) == "null" {
		*a = 0
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	minor, ok := domain.AmountFromDecimal(d)
	if !ok {
		return fmt.Errorf("amount %s has more than %d decimal places or is out of range", raw, domain.MinorUnitExponent)
	}
	*a = Amount(minor)
	return nil
}

// Minor returns the value in minor units.
func (a Amount) Minor() int64 { return int64(a) }

// MinorPtr converts an optional amount.
func MinorPtr(a *Amount) *int64 {
	if a == nil {
		return nil
	}
	v := int64(*a)
	return &v
}
