package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/govalues/money"
)

// ErrAmountPrecision reports an amount with more fractional digits than the
// currency supports.
var ErrAmountPrecision = errors.New("amount has more decimal places than the currency allows")

// ParseAmount parses a decimal string such as "50" or "12.30" into an amount of
// the given currency. Values that cannot be represented exactly in minor units
// are rejected rather than rounded.
func ParseAmount(curr, s string) (money.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return money.Amount{}, errors.New("amount is required")
	}
	a, err := money.ParseAmount(curr, s)
	if err != nil {
		return money.Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	units, ok := a.MinorUnits()
	if !ok {
		return money.Amount{}, fmt.Errorf("amount %q out of range", s)
	}
	exact, err := money.NewAmountFromMinorUnits(curr, units)
	if err != nil {
		return money.Amount{}, err
	}
	if exact.Decimal().Cmp(a.Decimal()) != 0 {
		return money.Amount{}, ErrAmountPrecision
	}
	return exact, nil
}

// FromMinorUnits builds an amount from an integer count of minor units (cents).
func FromMinorUnits(curr string, units int64) (money.Amount, error) {
	return money.NewAmountFromMinorUnits(curr, units)
}

// MustFromMinorUnits is FromMinorUnits for constants and tests.
func MustFromMinorUnits(curr string, units int64) money.Amount {
	a, err := money.NewAmountFromMinorUnits(curr, units)
	if err != nil {
		panic(err)
	}
	return a
}

// MinorUnits returns a's value in minor units. All ledger amounts are built
// from minor units, so the conversion is exact.
func MinorUnits(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}

// FormatAmount renders a as a plain decimal string ("100.00") without the
// currency code.
func FormatAmount(a money.Amount) string {
	return a.Decimal().String()
}
