package currency

import "math/big"

// Unit is a named decimal scale over a currency's base unit. Every currency
// has exactly one base unit (decimals == 0); derived units are offsets from
// it (e.g. BTC = 8 decimals over satoshi).
type Unit struct {
	currency *Currency
	code     string
	name     string
	symbol   string
	decimals uint8
	base     *Unit // nil when this unit is the base unit
}

// NewBaseUnit creates the base (integer) unit for a currency.
func NewBaseUnit(cur *Currency, code, name, symbol string) *Unit {
	return &Unit{
		currency: cur,
		code:     code,
		name:     name,
		symbol:   symbol,
		decimals: 0,
	}
}

// NewUnit creates a derived unit scaled by decimals over base.
func NewUnit(cur *Currency, code, name, symbol string, decimals uint8, base *Unit) *Unit {
	return &Unit{
		currency: cur,
		code:     code,
		name:     name,
		symbol:   symbol,
		decimals: decimals,
		base:     base,
	}
}

// Currency returns the unit's currency.
func (u *Unit) Currency() *Currency { return u.currency }

// Code returns the unit code.
func (u *Unit) Code() string { return u.code }

// Name returns the unit name.
func (u *Unit) Name() string { return u.name }

// Symbol returns the display symbol.
func (u *Unit) Symbol() string { return u.symbol }

// Decimals returns the scale offset from the base unit.
func (u *Unit) Decimals() uint8 { return u.decimals }

// Base returns the base unit of the unit's currency.
func (u *Unit) Base() *Unit {
	if u.base == nil {
		return u
	}
	return u.base
}

// IsBase reports whether the unit is its currency's base unit.
func (u *Unit) IsBase() bool { return u.base == nil }

// IsCompatible reports whether amounts in this unit and o may be combined.
// Units of different currencies are never compatible.
func (u *Unit) IsCompatible(o *Unit) bool {
	if u == nil || o == nil {
		return false
	}
	return u.currency.Equal(o.currency)
}

// scale returns 10^decimals as a big integer.
func (u *Unit) scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(u.decimals)), nil)
}
