package domain

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	dErrors "ftledger/pkg/domain-errors"
)

// maxAmount is 2^128-1, the largest value a balance, allowance or supply
// counter may hold.
var maxAmount = uint256.Int{math.MaxUint64, math.MaxUint64, 0, 0}

// Amount is an unsigned 128-bit token quantity. Arithmetic is checked: the
// helpers report overflow instead of wrapping. The zero value is zero.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding u.
func NewAmount(u uint64) Amount {
	var a Amount
	a.v.SetUint64(u)
	return a
}

// MaxAmount returns 2^128-1.
func MaxAmount() Amount {
	return Amount{v: maxAmount}
}

// ParseAmount decodes a base-10 string. Values above 2^128-1 are rejected.
func ParseAmount(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "amount must be a base-10 unsigned integer")
	}
	if v.Gt(&maxAmount) {
		return Amount{}, dErrors.New(dErrors.CodeBadRequest, "amount exceeds 128 bits")
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b and false when the sum does not fit in 128 bits.
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	out.v.Add(&a.v, &b.v) // both operands < 2^128, so the 256-bit sum cannot wrap
	if out.v.Gt(&maxAmount) {
		return Amount{}, false
	}
	return out, true
}

// Sub returns a-b and false when b > a.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if a.v.Lt(&b.v) {
		return Amount{}, false
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out, true
}

// MulUint64 returns a*n and false when the product does not fit in 128 bits.
func (a Amount) MulUint64(n uint64) (Amount, bool) {
	var out Amount
	m := uint256.NewInt(n)
	if _, overflow := out.v.MulOverflow(&a.v, m); overflow || out.v.Gt(&maxAmount) {
		return Amount{}, false
	}
	return out, true
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Lt reports a < b.
func (a Amount) Lt(b Amount) bool {
	return a.v.Lt(&b.v)
}

// Gt reports a > b.
func (a Amount) Gt(b Amount) bool {
	return a.v.Gt(&b.v)
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Float64 is a lossy conversion for metrics.
func (a Amount) Float64() float64 {
	return a.v.Float64()
}

// String returns the base-10 representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalJSON encodes the amount as a quoted decimal so 128-bit values
// survive JSON number handling in clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both a quoted decimal and a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return a.UnmarshalText([]byte(s))
	}
	return a.UnmarshalText(data)
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	return a.UnmarshalText([]byte(node.Value))
}

func (a Amount) MarshalYAML() (any, error) {
	return a.String(), nil
}
