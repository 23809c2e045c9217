// Package money implements the fixed-point currency amount used for every
// persisted and transmitted monetary figure.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept by an Amount.
const Scale = 2

// Amount is a currency value rounded half away from zero to two decimal
// places. The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Amount{}

// Round rounds value half away from zero to two decimal places.
func Round(value decimal.Decimal) Amount {
	return Amount{d: value.Round(Scale)}
}

// Parse reads a decimal string such as "120" or "120.005" into a rounded Amount.
func Parse(value string) (Amount, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return Round(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(value string) Amount {
	a, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return a
}

// FromMinorUnits converts processor minor units (cents, grosze) to an Amount.
func FromMinorUnits(minor int64) Amount {
	return Amount{d: decimal.New(minor, -Scale)}
}

// Sum adds amounts without intermediate rounding and rounds the result once.
func Sum(amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.d)
	}
	return Round(total)
}

// Decimal exposes the underlying value for accumulation.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// Add returns round(a+b).
func (a Amount) Add(b Amount) Amount {
	return Round(a.d.Add(b.d))
}

// Sub returns round(a-b).
func (a Amount) Sub(b Amount) Amount {
	return Round(a.d.Sub(b.d))
}

// MulInt returns round(a*n).
func (a Amount) MulInt(n int) Amount {
	return Round(a.d.Mul(decimal.NewFromInt(int64(n))))
}

// Percent returns round(a*rate/100).
func (a Amount) Percent(rate decimal.Decimal) Amount {
	return Round(a.d.Mul(rate).Div(decimal.NewFromInt(100)))
}

// ToMinorUnits returns round(a)*100 as an integer.
func (a Amount) ToMinorUnits() int64 {
	return a.d.Round(Scale).Shift(Scale).IntPart()
}

func (a Amount) IsZero() bool     { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Equal compares values, ignoring representation.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// Cmp returns -1, 0 or 1.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// String renders the canonical storage form: fixed point, two decimals.
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// Format is String for call sites that read better as a function.
func Format(a Amount) string {
	return a.String()
}

// Value stores the amount as its fixed 2-decimal string.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan reads numeric, text and float columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Zero
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		*a = Round(decimal.NewFromInt(v))
		return nil
	case float64:
		*a = Round(decimal.NewFromFloat(v))
		return nil
	default:
		return fmt.Errorf("unsupported amount source %T", src)
	}
}

// MarshalJSON encodes the amount as a string to avoid float drift in clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "12.30" and 12.3.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = Zero
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
