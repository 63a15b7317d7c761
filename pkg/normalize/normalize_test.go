package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"canonical", "15/08/2005", "15/08/2005", true},
		{"iso", "2005-08-15", "15/08/2005", true},
		{"dashed day first", "15-08-2005", "15/08/2005", true},
		{"us order when day first is impossible", "08/15/2005", "15/08/2005", true},
		{"ambiguous resolves day first", "03/04/2005", "03/04/2005", true},
		{"iso datetime", "2005-08-15 00:00:00", "15/08/2005", true},
		{"single digit day", "5/8/2005", "05/08/2005", true},
		{"surrounding space", "  15/08/2005 ", "15/08/2005", true},
		{"time value", time.Date(2005, 8, 15, 0, 0, 0, 0, time.UTC), "15/08/2005", true},
		{"excel serial float", 38579.0, "15/08/2005", true},
		{"excel serial string", "38579", "15/08/2005", true},
		{"excel serial int", 38579, "15/08/2005", true},
		{"empty", "", "", false},
		{"nil", nil, "", false},
		{"zero time", time.Time{}, "", false},
		{"bare year", "2005", "", false},
		{"garbage", "not a date", "", false},
		{"impossible date", "31/02/2005", "", false},
		{"month and year only", "08/2005", "", false},
		{"small number", 42, "", false},
		{"unsupported type", struct{}{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_Idempotent(t *testing.T) {
	inputs := []any{
		"15/08/2005", "2005-08-15", "15-08-2005", "08/15/2005", "5/8/2005",
		"2005-08-15T00:00:00", 38579.0, "38579", time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC),
	}

	for _, in := range inputs {
		once, ok := Date(in)
		if !assert.True(t, ok, "input %v", in) {
			continue
		}
		twice, ok := Date(once)
		assert.True(t, ok)
		assert.Equal(t, once, twice, "input %v", in)
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		width int
		want  string
		ok    bool
	}{
		{"already full width", "123456789012", 12, "123456789012", true},
		{"pads short", "3456789012", 12, "003456789012", true},
		{"int", 123456789012, 12, "123456789012", true},
		{"float", 123456789012.0, 12, "123456789012", true},
		{"float text", "123456789012.0", 12, "123456789012", true},
		{"scientific text", "1.23456789012E+11", 12, "123456789012", true},
		{"grouped", "1234 5678 9012", 12, "123456789012", true},
		{"too long", "1234567890123", 12, "", false},
		{"fractional", 12.5, 12, "", false},
		{"negative", -5, 12, "", false},
		{"zero", 0, 12, "000000000000", true},
		{"all zeros full width", "000000000000", 12, "000000000000", true},
		{"leading zeros full width", "000123456789", 12, "000123456789", true},
		{"letters", "12AB", 12, "", false},
		{"empty", "", 12, "", false},
		{"nil", nil, 12, "", false},
		{"bad width", "12", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Identifier(tt.in, tt.width)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.Len(t, got, tt.width)
			}
		})
	}
}

func TestYear(t *testing.T) {
	y, ok := Year("15/08/2005")
	assert.True(t, ok)
	assert.Equal(t, "2005", y)

	y, ok = Year("2005")
	assert.True(t, ok)
	assert.Equal(t, "2005", y)

	y, ok = Year(2005)
	assert.True(t, ok)
	assert.Equal(t, "2005", y)

	_, ok = Year("someday")
	assert.False(t, ok)
}

func TestSectionCode(t *testing.T) {
	table := map[string]string{"A": "1", "B": "2"}

	letter, code, ok := SectionCode(" a-section", table)
	assert.True(t, ok)
	assert.Equal(t, "A", letter)
	assert.Equal(t, "1", code)

	letter, code, ok = SectionCode("B", table)
	assert.True(t, ok)
	assert.Equal(t, "B", letter)
	assert.Equal(t, "2", code)

	_, _, ok = SectionCode("C", table)
	assert.False(t, ok)

	_, _, ok = SectionCode("", table)
	assert.False(t, ok)

	_, _, ok = SectionCode(7, table)
	assert.False(t, ok)
}
