package domain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// maxAmount is 2^128 - 1, the largest value a balance, supply or transfer
// quantity may hold. Amounts are stored as decimal strings and parsed back
// through this cap on every arithmetic step.
var maxAmount = uint256.Int{^uint64(0), ^uint64(0), 0, 0}

// Amount is an unsigned 128-bit quantity. The zero value is the amount 0.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding the given small value.
func NewAmount(u uint64) Amount {
	var a Amount
	a.v.SetUint64(u)
	return a
}

// MaxAmount returns the largest representable amount, 2^128 - 1.
func MaxAmount() Amount {
	return Amount{v: maxAmount}
}

// ParseAmount parses a non-negative decimal string into an Amount.
// Returns ErrInvalidArgument for malformed input and ErrAmountOutOfRange
// for values above 2^128 - 1.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount: %w", ErrInvalidArgument)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, ErrInvalidArgument)
	}
	if v.Gt(&maxAmount) {
		return Amount{}, fmt.Errorf("amount %q: %w", s, ErrAmountOutOfRange)
	}
	return Amount{v: *v}, nil
}

// Add returns a+b, failing with ErrOverflow past 2^128 - 1.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum uint256.Int
	if _, carry := sum.AddOverflow(&a.v, &b.v); carry || sum.Gt(&maxAmount) {
		return Amount{}, ErrOverflow
	}
	return Amount{v: sum}, nil
}

// Sub returns a-b, failing with ErrUnderflow when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var diff uint256.Int
	if _, borrow := diff.SubOverflow(&a.v, &b.v); borrow {
		return Amount{}, ErrUnderflow
	}
	return Amount{v: diff}, nil
}

// MulUint64 returns a*n, failing with ErrOverflow past 2^128 - 1.
func (a Amount) MulUint64(n uint64) (Amount, error) {
	var m, product uint256.Int
	m.SetUint64(n)
	if _, overflow := product.MulOverflow(&a.v, &m); overflow || product.Gt(&maxAmount) {
		return Amount{}, ErrOverflow
	}
	return Amount{v: product}, nil
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.v.Lt(&b.v) {
		return a
	}
	return b
}

// Cmp returns -1, 0 or 1 comparing a against b.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// IsZero reports whether the amount is 0.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// String renders the amount as a decimal string.
func (a Amount) String() string {
	return a.v.Dec()
}
