// Package chain describes blockchain networks: identity, native and
// supported currencies, fee schedules, sync modes and address schemes.
// Networks are static descriptions; the ledger engine owns the chain itself.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/coinharbor/walletcore/internal/currency"
)

// SyncMode selects how a wallet manager keeps a network in sync.
type SyncMode string

const (
	SyncModeAPIOnly          SyncMode = "api_only"
	SyncModeAPIWithP2PSubmit SyncMode = "api_with_p2p_submit"
	SyncModeP2POnly          SyncMode = "p2p_only"
	SyncModeP2PWithAPISync   SyncMode = "p2p_with_api_sync"
)

// AddressScheme selects the receive-address encoding for a wallet.
type AddressScheme string

const (
	AddressSchemeBTCLegacy  AddressScheme = "btc_legacy"
	AddressSchemeBTCSegwit  AddressScheme = "btc_segwit"
	AddressSchemeETHDefault AddressScheme = "eth_default"
	AddressSchemeGenDefault AddressScheme = "gen_default"
)

// Address is an opaque chain address. Encodings differ per chain family, so
// the core treats addresses as validated-elsewhere strings.
type Address string

// ErrEmptyFeeSchedule is returned when a network fee update carries no fees.
var ErrEmptyFeeSchedule = errors.New("network fee schedule must not be empty")

// NetworkFee pairs a confirmation-time target with the price per cost
// factor (sat/vB, gas price, ...) the network charges to hit it.
type NetworkFee struct {
	UID                string
	ConfirmationTimeMS uint64
	PricePerCostFactor *currency.Amount
}

// Network is the static description of one chain.
type Network struct {
	uid       string
	name      string
	isMainnet bool

	native     *currency.Currency
	currencies map[string]*currency.Currency // by uid
	units      map[string][]*currency.Unit   // currency uid -> units, base first

	supportedModes   []SyncMode
	supportedSchemes []AddressScheme

	mu                      sync.RWMutex
	height                  uint64
	confirmationsUntilFinal uint32
	fees                    []*NetworkFee
}

// NetworkConfig carries everything needed to construct a Network.
type NetworkConfig struct {
	UID                     string
	Name                    string
	IsMainnet               bool
	Native                  *currency.Currency
	Height                  uint64
	ConfirmationsUntilFinal uint32
	Fees                    []*NetworkFee
	SupportedModes          []SyncMode
	SupportedSchemes        []AddressScheme
}

// NewNetwork constructs a network. The fee schedule must be non-empty and
// the native currency is always an associated currency.
func NewNetwork(cfg NetworkConfig) (*Network, error) {
	if cfg.Native == nil {
		return nil, errors.New("network requires a native currency")
	}
	if len(cfg.Fees) == 0 {
		return nil, ErrEmptyFeeSchedule
	}
	if len(cfg.SupportedModes) == 0 {
		return nil, errors.New("network requires at least one sync mode")
	}
	if len(cfg.SupportedSchemes) == 0 {
		return nil, errors.New("network requires at least one address scheme")
	}

	n := &Network{
		uid:                     cfg.UID,
		name:                    cfg.Name,
		isMainnet:               cfg.IsMainnet,
		native:                  cfg.Native,
		currencies:              make(map[string]*currency.Currency),
		units:                   make(map[string][]*currency.Unit),
		supportedModes:          cfg.SupportedModes,
		supportedSchemes:        cfg.SupportedSchemes,
		height:                  cfg.Height,
		confirmationsUntilFinal: cfg.ConfirmationsUntilFinal,
		fees:                    cfg.Fees,
	}
	n.currencies[cfg.Native.UID()] = cfg.Native
	return n, nil
}

// UID returns the network identifier.
func (n *Network) UID() string { return n.uid }

// Name returns the display name.
func (n *Network) Name() string { return n.name }

// IsMainnet reports whether this is a main network.
func (n *Network) IsMainnet() bool { return n.isMainnet }

// NativeCurrency returns the network's native currency.
func (n *Network) NativeCurrency() *currency.Currency { return n.native }

// ConfirmationsUntilFinal returns the finality depth.
func (n *Network) ConfirmationsUntilFinal() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.confirmationsUntilFinal
}

// Height returns the last reported block height.
func (n *Network) Height() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.height
}

// SetHeight records a reported block height. Heights normally advance but a
// reorg may report a lower one; the last report wins.
func (n *Network) SetHeight(height uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.height = height
}

// AddCurrency associates a currency and its units (base unit first) with the
// network.
func (n *Network) AddCurrency(cur *currency.Currency, units ...*currency.Unit) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.currencies[cur.UID()] = cur
	n.units[cur.UID()] = units
}

// HasCurrency reports whether the currency is supported on this network.
func (n *Network) HasCurrency(cur *currency.Currency) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.currencies[cur.UID()]
	return ok
}

// CurrencyByUID looks up a supported currency.
func (n *Network) CurrencyByUID(uid string) (*currency.Currency, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	cur, ok := n.currencies[uid]
	return cur, ok
}

// BaseUnitFor returns the base unit of a supported currency.
func (n *Network) BaseUnitFor(cur *currency.Currency) (*currency.Unit, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	units := n.units[cur.UID()]
	if len(units) == 0 {
		return nil, false
	}
	return units[0], true
}

// DefaultUnitFor returns the preferred display unit of a supported currency
// (the last registered unit, by convention the largest).
func (n *Network) DefaultUnitFor(cur *currency.Currency) (*currency.Unit, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	units := n.units[cur.UID()]
	if len(units) == 0 {
		return nil, false
	}
	return units[len(units)-1], true
}

// SupportedModes returns the sync modes this network supports.
func (n *Network) SupportedModes() []SyncMode { return n.supportedModes }

// SupportsMode reports whether mode is supported.
func (n *Network) SupportsMode(mode SyncMode) bool {
	for _, m := range n.supportedModes {
		if m == mode {
			return true
		}
	}
	return false
}

// DefaultMode returns the network's preferred sync mode.
func (n *Network) DefaultMode() SyncMode { return n.supportedModes[0] }

// SupportedSchemes returns the address schemes this network supports.
func (n *Network) SupportedSchemes() []AddressScheme { return n.supportedSchemes }

// SupportsScheme reports whether scheme is supported.
func (n *Network) SupportsScheme(scheme AddressScheme) bool {
	for _, s := range n.supportedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// DefaultScheme returns the network's preferred address scheme.
func (n *Network) DefaultScheme() AddressScheme { return n.supportedSchemes[0] }

// Fees returns the current fee schedule.
func (n *Network) Fees() []*NetworkFee {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*NetworkFee, len(n.fees))
	copy(out, n.fees)
	return out
}

// SetFees replaces the fee schedule. An empty schedule is refused.
func (n *Network) SetFees(fees []*NetworkFee) error {
	if len(fees) == 0 {
		return ErrEmptyFeeSchedule
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fees = fees
	return nil
}

// MinimumFee returns the cheapest fee: the one with the largest
// confirmation-time target.
func (n *Network) MinimumFee() *NetworkFee {
	n.mu.RLock()
	defer n.mu.RUnlock()
	min := n.fees[0]
	for _, fee := range n.fees[1:] {
		if fee.ConfirmationTimeMS > min.ConfirmationTimeMS {
			min = fee
		}
	}
	return min
}

func (n *Network) String() string {
	kind := "testnet"
	if n.isMainnet {
		kind = "mainnet"
	}
	return fmt.Sprintf("Network{%s %s}", n.uid, kind)
}
