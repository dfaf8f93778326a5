// Package fbmoney holds the fixed-point currency type used by checkout
// prices and payments.
package fbmoney

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in cents. It is stored as an integer column and
// serialized as a JSON number with two decimals.
type Money int64

func FromFloat(f float64) Money {
	return Money(math.Round(f * 100))
}

func (m Money) Cents() int64 {
	return int64(m)
}

func (m Money) Float() float64 {
	return float64(m) / 100
}

func (m Money) String() string {
	return strconv.FormatFloat(m.Float(), 'f', 2, 64)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", string(b))
	}
	*m = FromFloat(f)
	return nil
}

// Round2 rounds a float to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
