package money

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Amount is an exact decimal monetary value. Provider pricing is quoted in
// fractional cents, so float64 arithmetic is not acceptable here.
type Amount struct {
	value apd.Decimal
}

// Parse parses a decimal string like "0.0025".
func Parse(s string) (Amount, error) {
	var d apd.Decimal
	_, _, err := d.SetString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{value: d}, nil
}

// MustParse parses a decimal string and panics on failure. Intended for
// static pricing tables validated at startup.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

func (a Amount) String() string {
	return a.value.Text('f')
}

func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(&other.value)
}

// Add returns the sum of a and other.
func (a Amount) Add(other Amount) Amount {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Add(&result, &a.value, &other.value)
	return Amount{value: result}
}
