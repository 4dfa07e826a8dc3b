package money

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseRoundsToMinorUnits(t *testing.T) {
	cases := []struct {
		in       string
		expected Amount
	}{
		{"150", 15000},
		{"12.5", 1250},
		{"1,250.00", 125000},
		{"0.005", 1},
		{"-0.005", -1},
		{" 99.994 ", 9999},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tc.in, err)
		}
		if got != tc.expected {
			t.Fatalf("Parse(%q) expected %d, got %d", tc.in, tc.expected, got)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("ten rupees"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSameLayerUsesOneMinorUnitTolerance(t *testing.T) {
	if !SameLayer(MustParse("10.00"), MustParse("10.01")) {
		t.Fatalf("expected 10.00 and 10.01 to share a layer")
	}
	if SameLayer(MustParse("10.00"), MustParse("10.02")) {
		t.Fatalf("expected 10.00 and 10.02 to be separate layers")
	}
	if !SameLayer(MustParse("10.01"), MustParse("10.00")) {
		t.Fatalf("expected tolerance to be symmetric")
	}
}

func TestJSONRoundTripAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		Rate     Amount  `json:"rate"`
		Discount Amount  `json:"discount"`
		Optional *Amount `json:"optional"`
	}
	if err := json.Unmarshal([]byte(`{"rate": 12.5, "discount": "3.25", "optional": null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Rate != 1250 || payload.Discount != 325 {
		t.Fatalf("unexpected amounts: %d %d", payload.Rate, payload.Discount)
	}
	if payload.Optional != nil {
		t.Fatalf("expected nil optional amount")
	}

	out, err := json.Marshal(payload.Rate)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "12.50" {
		t.Fatalf("expected 12.50, got %s", out)
	}
}

func TestMulAndString(t *testing.T) {
	profit := (MustParse("150") - MustParse("100")).Mul(3)
	if profit != FromUnits(150) {
		t.Fatalf("expected 150.00, got %s", profit)
	}
	if Amount(-2550).String() != "-25.50" {
		t.Fatalf("unexpected string %s", Amount(-2550).String())
	}
}

func TestOutOfRangeAmountsAreRejected(t *testing.T) {
	if _, err := Parse("1000000000"); err != nil {
		t.Fatalf("expected MaxAmount to parse, got %v", err)
	}
	for _, raw := range []string{"1000000000.01", "-1000000000.01", "2e17"} {
		if _, err := Parse(raw); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Parse(%q) expected ErrOutOfRange, got %v", raw, err)
		}
	}

	var a Amount
	if err := json.Unmarshal([]byte(`200000000000000000`), &a); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected json overflow error, got %v (stored %s)", err, a)
	}
	if a != 0 {
		t.Fatalf("expected amount untouched, got %s", a)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if p, err := MustParse("-20").MulChecked(3); err != nil || p != MustParse("-60") {
		t.Fatalf("expected -60.00, got %s (%v)", p, err)
	}
	if _, err := Amount(math.MaxInt64 / 2).MulChecked(3); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected multiply overflow, got %v", err)
	}
	if _, err := Amount(math.MinInt64).MulChecked(-1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected MinInt64 * -1 overflow, got %v", err)
	}
	if s, err := Add(MustParse("1.50"), MustParse("-0.25")); err != nil || s != MustParse("1.25") {
		t.Fatalf("expected 1.25, got %s (%v)", s, err)
	}
	if _, err := Add(Amount(math.MaxInt64), 1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected add overflow, got %v", err)
	}
	if _, err := Add(Amount(math.MinInt64), -1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected add underflow, got %v", err)
	}
}
