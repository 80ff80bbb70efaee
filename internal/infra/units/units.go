// Package units converts between integer minor units held by the ledgers and
// the decimal strings shown to people.
package units

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the number of fractional digits of the native currency.
const DefaultDecimals int32 = 8

// Parse converts a decimal string such as "0.01" into minor units. Values
// with more fractional digits than decimals are rejected rather than rounded.
func Parse(s string, decimals int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return scaled.IntPart(), nil
}

// Format renders minor units as a fixed-point decimal string.
func Format(minor int64, decimals int32) string {
	return decimal.New(minor, -decimals).StringFixed(decimals)
}
