package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFromDecimalAndRound(t *testing.T) {
	cases := []struct {
		in    float64
		cents int64
	}{
		{30, 3000},
		{33.333333, 3333},
		{0.125, 13},
		{2500, 250000},
		{0, 0},
	}
	for _, tc := range cases {
		if got := FromDecimal(tc.in).Cents; got != tc.cents {
			t.Fatalf("FromDecimal(%v) = %d, want %d", tc.in, got, tc.cents)
		}
	}
	if got := RoundToCents(100.0 / 3); got != 33.33 {
		t.Fatalf("RoundToCents(100/3) = %v, want 33.33", got)
	}
	if got := (Money{Cents: 1234}).String(); got != "12.34" {
		t.Fatalf("String() = %q", got)
	}
}
