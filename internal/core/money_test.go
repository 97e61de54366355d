package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in  string
		out float64
	}{
		{"1", 1},
		{"1.234", 1.23},
		{"1.235", 1.24},
		{"-1.235", -1.24},
		{"1987.5", 1987.5},
		{"0.1", 0.1},
	}
	for _, tc := range cases {
		got := Round2(decimal.RequireFromString(tc.in))
		if got != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
	}
}

func TestDecimalSumIsExact(t *testing.T) {
	sum := decimal.Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(Decimal(0.1))
	}
	if got := Float(sum); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}
