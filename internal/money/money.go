// Package money holds currency values as integer minor units so that rate
// comparisons and profit sums never accumulate floating point drift.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Amount is a currency value in minor units (1/100 of the currency unit).
type Amount int64

// Epsilon is the cost-layer matching tolerance: two rates within one minor
// unit (0.01) of each other belong to the same layer.
const Epsilon Amount = 1

const scale = 2

// MaxAmount bounds any single parsed value: one billion currency units.
const MaxAmount Amount = 100_000_000_000

var ErrOutOfRange = errors.New("amount out of range")

var maxDecimal = decimal.NewFromInt(int64(MaxAmount))

// FromDecimal rounds d half away from zero to two places. Values beyond
// MaxAmount in either direction fail with ErrOutOfRange.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(scale).Round(0)
	if minor.Abs().GreaterThan(maxDecimal) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return Amount(minor.IntPart()), nil
}

// Parse reads a decimal string such as "12.5" or "1,250.00".
func Parse(raw string) (Amount, error) {
	d, err := decimal.NewFromString(stripGrouping(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	a, err := FromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return a, nil
}

// MustParse is Parse for literals in tests and seed data.
func MustParse(raw string) Amount {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// FromUnits builds an amount from whole currency units.
func FromUnits(units int64) Amount {
	return Amount(units * 100)
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -scale)
}

func (a Amount) Float64() float64 {
	f, _ := a.Decimal().Float64()
	return f
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(scale)
}

// Mul multiplies a unit price by a quantity. Callers that cannot bound
// both operands use MulChecked.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// MulChecked is Mul that fails with ErrOutOfRange instead of wrapping.
func (a Amount) MulChecked(qty int) (Amount, error) {
	if a == 0 || qty == 0 {
		return 0, nil
	}
	q := Amount(qty)
	if (a == -1 && q == math.MinInt64) || (q == -1 && a == math.MinInt64) {
		return 0, ErrOutOfRange
	}
	p := a * q
	if p/q != a {
		return 0, ErrOutOfRange
	}
	return p, nil
}

// Add sums amounts, failing with ErrOutOfRange on int64 overflow.
func Add(amounts ...Amount) (Amount, error) {
	var sum Amount
	for _, b := range amounts {
		next := sum + b
		if (b > 0 && next < sum) || (b < 0 && next > sum) {
			return 0, ErrOutOfRange
		}
		sum = next
	}
	return sum, nil
}

func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// SameLayer reports whether two rates fall within Epsilon of each other.
func SameLayer(a, b Amount) bool {
	return (a - b).Abs() <= Epsilon
}

// MarshalJSON renders the amount as a plain JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(data), err)
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func stripGrouping(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case ',', ' ', '\t':
			continue
		}
		out = append(out, raw[i])
	}
	return string(out)
}
