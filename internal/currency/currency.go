// Package currency defines the Currency/Unit/Amount model used across the
// wallet core. Amounts are exact arbitrary-precision integers in base units;
// a Unit names a decimal scale over a Currency's base unit.
package currency

// Type represents the currency family.
type Type string

const (
	TypeNative Type = "native" // chain-native currency (BTC, ETH)
	TypeERC20  Type = "erc20"  // contract-issued token
	TypeOther  Type = "other"
)

// Currency identifies a single currency. Equality is uid-based: two
// currencies with the same code but different uids are distinct.
type Currency struct {
	uid    string
	code   string
	name   string
	typ    Type
	issuer string // contract/issuer address, empty for native currencies
}

// NewCurrency creates a currency with the given identity.
func NewCurrency(uid, code, name string, typ Type, issuer string) *Currency {
	return &Currency{
		uid:    uid,
		code:   code,
		name:   name,
		typ:    typ,
		issuer: issuer,
	}
}

// UID returns the unique identifier.
func (c *Currency) UID() string { return c.uid }

// Code returns the ticker code (BTC, ETH, ...).
func (c *Currency) Code() string { return c.code }

// Name returns the display name.
func (c *Currency) Name() string { return c.name }

// CurrencyType returns the currency family.
func (c *Currency) CurrencyType() Type { return c.typ }

// Issuer returns the issuer address, empty if none.
func (c *Currency) Issuer() string { return c.issuer }

// Equal reports whether two currencies share the same uid.
func (c *Currency) Equal(o *Currency) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.uid == o.uid
}
