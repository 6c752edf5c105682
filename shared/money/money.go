// Package money holds the exact decimal amount type used for balances and
// movements. Amounts always carry two fractional digits.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored or transmitted amount is rounded to.
const Scale = 2

// MaxDigits is the precision of the NUMERIC(15,2) columns amounts are stored in.
const MaxDigits = 15

// maxInputLen bounds the text Parse accepts and, with it, the exponent range
// a decimal can carry into Round.
const maxInputLen = 64

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrMalformed = errors.New("amount is not a valid decimal")
	ErrTooLarge  = errors.New("amount exceeds 9999999999999.99")
)

// MaxAmount is the largest amount a balance or movement can hold.
var MaxAmount = Amount{d: decimal.New(999999999999999, -Scale)}

// Amount is a non-negative fixed-point currency value.
type Amount struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Amount{d: decimal.Zero}

// Parse reads a decimal string, rounding to Scale. Negative input is rejected.
func Parse(s string) (Amount, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > maxInputLen {
		return Amount{}, fmt.Errorf("%w: longer than %d characters", ErrMalformed, maxInputLen)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return fromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromCents builds an amount from an integer number of minor units.
func FromCents(cents int64) (Amount, error) {
	return fromDecimal(decimal.New(cents, -Scale))
}

// fromDecimal checks the magnitude before rounding: Round expands the
// coefficient by the exponent, so "1e20000000" must never reach it.
func fromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, ErrNegative
	}
	exp := int64(d.Exponent())
	if exp < -maxInputLen || exp > maxInputLen {
		return Amount{}, fmt.Errorf("%w: exponent out of range", ErrMalformed)
	}
	if !d.IsZero() && int64(len(d.Coefficient().String()))+exp > MaxDigits-Scale {
		return Amount{}, ErrTooLarge
	}
	rounded := d.Round(Scale)
	if rounded.GreaterThan(MaxAmount.d) {
		return Amount{}, ErrTooLarge
	}
	return Amount{d: rounded}, nil
}

func (a Amount) IsZero() bool     { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int        { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool     { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool  { return a.d.LessThan(b.d) }
func (a Amount) Add(b Amount) Amount     { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Decimal() decimal.Decimal { return a.d }

// Sub returns a-b. It fails rather than produce a negative amount.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.d.LessThan(b.d) {
		return Amount{}, ErrNegative
	}
	return Amount{d: a.d.Sub(b.d)}, nil
}

// String renders the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return ErrMalformed
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the amount as a fixed-scale decimal string for NUMERIC columns.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	parsed, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
