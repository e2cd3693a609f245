package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0", "0", true},
		{".5", "0.5", true},
		{"5.", "5", true},
		{"1.005", "1.01", true},
		{"12.344", "12.34", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{".", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestCoerceAmount(t *testing.T) {
	for in, want := range map[string]string{"12.5": "12.5", "": "0", "abc": "0", "-4": "0"} {
		if got := CoerceAmount(in); !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("%q expected %s, got %s", in, want, got)
		}
	}
}

func TestFormatINR(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "₹0.00"},
		{"5", "₹5.00"},
		{"999.999", "₹1,000.00"},
		{"12345", "₹12,345.00"},
		{"123456.7", "₹1,23,456.70"},
		{"1234567.8", "₹12,34,567.80"},
		{"10000000", "₹1,00,00,000.00"},
		{"-60000", "-₹60,000.00"},
		{"-0.001", "₹0.00"},
	}
	for _, tc := range cases {
		if got := FormatINR(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("%s expected %s, got %s", tc.in, tc.want, got)
		}
	}
}
