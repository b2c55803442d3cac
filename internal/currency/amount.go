package currency

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrIncompatibleUnits is returned when arithmetic mixes currencies.
var ErrIncompatibleUnits = errors.New("incompatible units")

// Amount is a signed arbitrary-precision value in a currency, stored in base
// units with a reference unit for presentation. Arithmetic between amounts
// of different currencies is refused; relational comparisons between them
// return false for every operator (no trichotomy).
type Amount struct {
	value *big.Int // base units
	unit  *Unit
}

// NewAmount creates an amount of `value` expressed in `unit`, scaled to the
// currency's base unit.
func NewAmount(value int64, unit *Unit) *Amount {
	v := new(big.Int).Mul(big.NewInt(value), unit.scale())
	return &Amount{value: v, unit: unit}
}

// NewAmountFromBase creates an amount from a raw base-unit value.
func NewAmountFromBase(value *big.Int, unit *Unit) *Amount {
	return &Amount{value: new(big.Int).Set(value), unit: unit}
}

// Zero returns the zero amount in the given unit.
func Zero(unit *Unit) *Amount {
	return &Amount{value: new(big.Int), unit: unit}
}

// Unit returns the amount's reference unit.
func (a *Amount) Unit() *Unit { return a.unit }

// Currency returns the amount's currency.
func (a *Amount) Currency() *Currency { return a.unit.Currency() }

// BaseValue returns a copy of the value in base units.
func (a *Amount) BaseValue() *big.Int { return new(big.Int).Set(a.value) }

// IsZero reports whether the amount is zero.
func (a *Amount) IsZero() bool { return a.value.Sign() == 0 }

// IsNegative reports whether the amount is negative.
func (a *Amount) IsNegative() bool { return a.value.Sign() < 0 }

// Negate returns the amount with its sign flipped.
func (a *Amount) Negate() *Amount {
	return &Amount{value: new(big.Int).Neg(a.value), unit: a.unit}
}

// Add returns a+b. The result keeps a's unit.
func (a *Amount) Add(b *Amount) (*Amount, error) {
	if !a.unit.IsCompatible(b.unit) {
		return nil, ErrIncompatibleUnits
	}
	return &Amount{value: new(big.Int).Add(a.value, b.value), unit: a.unit}, nil
}

// Sub returns a-b. The result keeps a's unit.
func (a *Amount) Sub(b *Amount) (*Amount, error) {
	if !a.unit.IsCompatible(b.unit) {
		return nil, ErrIncompatibleUnits
	}
	return &Amount{value: new(big.Int).Sub(a.value, b.value), unit: a.unit}, nil
}

// Convert returns the same value presented in a different unit of the same
// currency.
func (a *Amount) Convert(unit *Unit) (*Amount, error) {
	if !a.unit.IsCompatible(unit) {
		return nil, ErrIncompatibleUnits
	}
	return &Amount{value: new(big.Int).Set(a.value), unit: unit}, nil
}

// Cmp compares two amounts. ok is false when the units are incompatible, in
// which case callers must not rely on the ordering result.
func (a *Amount) Cmp(b *Amount) (order int, ok bool) {
	if !a.unit.IsCompatible(b.unit) {
		return 0, false
	}
	return a.value.Cmp(b.value), true
}

// Eq reports a == b; false when incompatible.
func (a *Amount) Eq(b *Amount) bool {
	order, ok := a.Cmp(b)
	return ok && order == 0
}

// Lt reports a < b; false when incompatible.
func (a *Amount) Lt(b *Amount) bool {
	order, ok := a.Cmp(b)
	return ok && order < 0
}

// Gt reports a > b; false when incompatible.
func (a *Amount) Gt(b *Amount) bool {
	order, ok := a.Cmp(b)
	return ok && order > 0
}

// Le reports a <= b; false when incompatible.
func (a *Amount) Le(b *Amount) bool {
	order, ok := a.Cmp(b)
	return ok && order <= 0
}

// Ge reports a >= b; false when incompatible.
func (a *Amount) Ge(b *Amount) bool {
	order, ok := a.Cmp(b)
	return ok && order >= 0
}

// String renders the amount in its reference unit.
func (a *Amount) String() string {
	if a.unit.decimals == 0 {
		return fmt.Sprintf("%s %s", a.value.String(), a.unit.code)
	}

	v := new(big.Int).Abs(a.value)
	quo, rem := new(big.Int).QuoRem(v, a.unit.scale(), new(big.Int))

	sign := ""
	if a.value.Sign() < 0 {
		sign = "-"
	}

	frac := strings.TrimRight(
		fmt.Sprintf("%0*s", a.unit.decimals, rem.String()), "0")
	if frac == "" {
		return fmt.Sprintf("%s%s %s", sign, quo.String(), a.unit.code)
	}
	return fmt.Sprintf("%s%s.%s %s", sign, quo.String(), frac, a.unit.code)
}
