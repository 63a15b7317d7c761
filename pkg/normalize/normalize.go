// Package normalize converts the heterogeneous date and identifier values
// found in input spreadsheets into the canonical forms the portal's forms
// accept. Every function is pure and total: bad input yields ok == false,
// never a panic.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the canonical DD/MM/YYYY form.
const DateLayout = "02/01/2006"

// Excel serial bounds accepted as dates: 10000 is 1927-05-18, the upper bound
// is 9999-12-31. Smaller numbers are far more likely to be years or counts.
const (
	minSerial = 10000
	maxSerial = 2958465
)

// dateLayouts are tried in order. Day-first forms come before the US form so
// that ambiguous values like 03/04/2005 resolve as 3 April.
var dateLayouts = []string{
	DateLayout,
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2/1/2006",
	"2-1-2006",
	"02.01.2006",
	"2006/01/02",
}

// Date returns v as DD/MM/YYYY. It accepts time.Time, Excel serial numbers
// and strings in any of the known layouts.
func Date(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if val.IsZero() {
			return "", false
		}
		return val.Format(DateLayout), true
	case *time.Time:
		if val == nil {
			return "", false
		}
		return Date(*val)
	case float64:
		return fromSerial(val)
	case float32:
		return fromSerial(float64(val))
	case int:
		return fromSerial(float64(val))
	case int64:
		return fromSerial(float64(val))
	case string:
		return dateFromString(val)
	default:
		return "", false
	}
}

func dateFromString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if serial, ok := serialString(s); ok {
		return fromSerial(serial)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// serialString recognises raw Excel serials ("38579" or "38579.0") read
// from a sheet without number formatting.
func serialString(s string) (float64, bool) {
	whole := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole = s[:i]
	}
	if len(whole) != 5 || !allDigits(whole) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func fromSerial(serial float64) (string, bool) {
	if math.IsNaN(serial) || serial < minSerial || serial > maxSerial {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}

// Year returns the four digit year of v. Besides everything Date accepts it
// takes a bare year.
func Year(v any) (string, bool) {
	switch val := v.(type) {
	case int:
		if val >= 1900 && val <= 9999 {
			return strconv.Itoa(val), true
		}
	case string:
		s := strings.TrimSpace(val)
		if len(s) == 4 && allDigits(s) {
			return s, true
		}
	}

	d, ok := Date(v)
	if !ok {
		return "", false
	}
	return d[len(d)-4:], true
}

// Identifier returns v as a string of exactly width digits, zero-padded on
// the left. Spaces and hyphens inside strings are ignored. Values that are
// negative, fractional or longer than width are rejected.
func Identifier(v any, width int) (string, bool) {
	if width <= 0 {
		return "", false
	}

	var digits string
	switch val := v.(type) {
	case nil:
		return "", false
	case int:
		if val < 0 {
			return "", false
		}
		digits = strconv.Itoa(val)
	case int64:
		if val < 0 {
			return "", false
		}
		digits = strconv.FormatInt(val, 10)
	case float64:
		s, ok := integral(val)
		if !ok {
			return "", false
		}
		digits = s
	case string:
		s, ok := identifierString(val)
		if !ok {
			return "", false
		}
		digits = s
	default:
		return "", false
	}

	if digits == "" || len(digits) > width {
		return "", false
	}
	return strings.Repeat("0", width-len(digits)) + digits, true
}

func identifierString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	if s == "" {
		return "", false
	}
	if allDigits(s) {
		return s, true
	}

	// Spreadsheet exports render large numbers as "1.23456789012E+11" or
	// "123456789012.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return integral(f)
}

func integral(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > 1e18 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', 0, 64), true
}

// SectionCode maps a free-text section ("A", "a-section", "B ") to the
// portal's dropdown value using the first letter. It returns the letter and
// the value.
func SectionCode(v any, table map[string]string) (string, string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", "", false
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", "", false
	}
	letter := s[:1]
	code, ok := table[letter]
	if !ok {
		return "", "", false
	}
	return letter, code, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
