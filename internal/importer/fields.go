package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"spendings/internal/core"
)

const (
	minYear = 1900
	maxYear = 2100

	// Decimal magnitude bounds for amounts. Anything larger overflows a
	// float64 and anything smaller rounds to zero.
	maxMagnitude = 309
	minMagnitude = -330
)

// ParseDate parses a DD/MM/YYYY date. Zero padding is optional but every
// part must be purely numeric, and the combination must exist in the
// calendar (31/04 and 29/02 of a non-leap year are rejected).
//
// Examples:
//
//	ParseDate("29/02/2024") -> 2024-02-29, nil
//	ParseDate("29/02/2023") -> error
//	ParseDate("1/2/2024")   -> 2024-02-01, nil
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, ok := atoiDigits(p)
		if !ok {
			return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if day < 1 || day > 31 || month < 1 || month > 12 || year < minYear || year > maxYear {
		return core.Date{}, fmt.Errorf("%w: %q out of range", core.ErrInvalidDate, s)
	}

	// time.Date normalizes overflowing days into the next month; a
	// mismatch on the way back out means the day does not exist.
	d := core.NewDate(year, month, day)
	if d.Day() != day || d.Month() != month || d.Year() != year {
		return core.Date{}, fmt.Errorf("%w: %q is not a calendar day", core.ErrInvalidDate, s)
	}
	return d, nil
}

// ParseAmount parses a signed decimal amount. A comma is the decimal
// separator; a period is accepted as well since only the comma is rewritten.
// Thousands separators and currency symbols are rejected.
//
// Examples:
//
//	ParseAmount("-15,25") -> -15.25, nil
//	ParseAmount("10.5")   -> 10.5, nil
//	ParseAmount("abc")    -> error
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, core.ErrInvalidAmount
	}
	normalized := strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	if d.IsZero() {
		return 0, nil
	}
	// Checked before conversion: the float path materializes 10^exponent.
	if mag := int64(d.Exponent()) + int64(d.NumDigits()); mag > maxMagnitude || mag < minMagnitude {
		return 0, fmt.Errorf("%w: %q is out of range", core.ErrInvalidAmount, s)
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %q is not finite", core.ErrInvalidAmount, s)
	}
	return f, nil
}

// ValidText returns the trimmed value and whether it is non-empty. Category
// and label share this rule.
func ValidText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func atoiDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
