package system

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/query"
)

// Configure discovers the available networks and registers them. Discovery
// goes through the query service when one is configured; without one, or
// when the service fails, the builtin descriptors are used instead. The
// discovered set is announced once registration is complete.
func (s *System) Configure(ctx context.Context, mainnet bool) []*chain.Network {
	discovered := s.discoverNetworks(ctx, mainnet)

	registered := make([]*chain.Network, 0, len(discovered))
	for _, n := range discovered {
		registered = append(registered, s.AddNetwork(n))
	}

	s.announceSystemEvent(SystemEvent{Kind: SystemEventDiscoveredNetworks, Networks: registered})
	return registered
}

func (s *System) discoverNetworks(ctx context.Context, mainnet bool) []*chain.Network {
	if s.queryc == nil {
		return builtinNetworks(mainnet)
	}

	blockchains, err := s.queryc.GetBlockchains(ctx, mainnet)
	if err != nil {
		s.log.Warn("network discovery failed, using builtins", "err", err)
		return builtinNetworks(mainnet)
	}

	var networks []*chain.Network
	for _, b := range blockchains {
		currencies, err := s.queryc.GetCurrencies(ctx, b.ID)
		if err != nil {
			s.log.Warn("currency discovery failed, skipping network", "network", b.ID, "err", err)
			continue
		}
		n, err := buildNetwork(b, currencies)
		if err != nil {
			s.log.Warn("unusable network descriptor, skipping", "network", b.ID, "err", err)
			continue
		}
		networks = append(networks, n)
	}
	if len(networks) == 0 {
		s.log.Warn("discovery returned no usable networks, using builtins")
		return builtinNetworks(mainnet)
	}
	return networks
}

func builtinNetworks(mainnet bool) []*chain.Network {
	var out []*chain.Network
	for _, uid := range chain.BuiltinUIDs() {
		n, _ := chain.Builtin(uid)
		if n.IsMainnet() == mainnet {
			out = append(out, n)
		}
	}
	return out
}

// buildNetwork turns a service blockchain descriptor and its currencies into
// a network. The native currency must be among the currencies and the fee
// schedule must be non-empty.
func buildNetwork(b *query.Blockchain, currencies []*query.Currency) (*chain.Network, error) {
	var nativeDesc *query.Currency
	for _, c := range currencies {
		if c.ID == b.NativeCurrency {
			nativeDesc = c
			break
		}
	}
	if nativeDesc == nil {
		return nil, fmt.Errorf("native currency %q not in currency set", b.NativeCurrency)
	}

	native, nativeUnits := buildCurrency(nativeDesc)
	base := nativeUnits[0]

	fees, err := buildFees(b, base)
	if err != nil {
		return nil, err
	}

	modes, schemes := chainDefaults(nativeDesc.Code)
	n, err := chain.NewNetwork(chain.NetworkConfig{
		UID:                     b.ID,
		Name:                    b.Name,
		IsMainnet:               b.IsMainnet,
		Native:                  native,
		Height:                  b.BlockHeight,
		ConfirmationsUntilFinal: b.ConfirmationsUntilFinal,
		Fees:                    fees,
		SupportedModes:          modes,
		SupportedSchemes:        schemes,
	})
	if err != nil {
		return nil, err
	}
	n.AddCurrency(native, nativeUnits...)

	for _, c := range currencies {
		if c.ID == nativeDesc.ID || !c.Verified {
			continue
		}
		cur, units := buildCurrency(c)
		n.AddCurrency(cur, units...)
	}
	return n, nil
}

// buildCurrency converts a service currency and its denominations into a
// currency and its units, base unit first, largest last. A currency whose
// denominations lack a zero-decimals entry gets a synthesized base unit.
func buildCurrency(c *query.Currency) (*currency.Currency, []*currency.Unit) {
	typ := currency.TypeOther
	switch c.Type {
	case "native":
		typ = currency.TypeNative
	case "erc20":
		typ = currency.TypeERC20
	}
	cur := currency.NewCurrency(c.ID, c.Code, c.Name, typ, c.Address)

	denoms := make([]query.Denomination, len(c.Denominations))
	copy(denoms, c.Denominations)
	sort.Slice(denoms, func(i, j int) bool { return denoms[i].Decimals < denoms[j].Decimals })

	var base *currency.Unit
	if len(denoms) > 0 && denoms[0].Decimals == 0 {
		d := denoms[0]
		base = currency.NewBaseUnit(cur, d.Code, d.Name, denomSymbol(d))
		denoms = denoms[1:]
	} else {
		code := strings.ToLower(c.Code) + "i"
		base = currency.NewBaseUnit(cur, code, c.Name+" base", code)
	}

	units := []*currency.Unit{base}
	for _, d := range denoms {
		units = append(units, currency.NewUnit(cur, d.Code, d.Name, denomSymbol(d), d.Decimals, base))
	}
	return cur, units
}

func denomSymbol(d query.Denomination) string {
	if d.Symbol != "" {
		return d.Symbol
	}
	return strings.ToLower(d.Code)
}

// buildFees converts the service fee tiers into a schedule priced in the
// native base unit.
func buildFees(b *query.Blockchain, base *currency.Unit) ([]*chain.NetworkFee, error) {
	var fees []*chain.NetworkFee
	for _, fe := range b.FeeEstimates {
		v, err := query.ParseAmount(fe.Amount)
		if err != nil {
			return nil, fmt.Errorf("fee %q: %w", fe.FeeID, err)
		}
		fees = append(fees, &chain.NetworkFee{
			UID:                b.ID + ":" + fe.FeeID,
			ConfirmationTimeMS: fe.ConfirmationTimeMS,
			PricePerCostFactor: currency.NewAmountFromBase(v, base),
		})
	}
	if len(fees) == 0 {
		return nil, chain.ErrEmptyFeeSchedule
	}
	return fees, nil
}

// chainDefaults picks the sync modes and address schemes for a chain family
// the service does not describe.
func chainDefaults(nativeCode string) ([]chain.SyncMode, []chain.AddressScheme) {
	switch strings.ToLower(nativeCode) {
	case "btc", "bch", "ltc":
		return []chain.SyncMode{
				chain.SyncModeAPIOnly, chain.SyncModeAPIWithP2PSubmit, chain.SyncModeP2POnly,
			}, []chain.AddressScheme{
				chain.AddressSchemeBTCSegwit, chain.AddressSchemeBTCLegacy,
			}
	case "eth":
		return []chain.SyncMode{chain.SyncModeAPIOnly, chain.SyncModeP2POnly},
			[]chain.AddressScheme{chain.AddressSchemeETHDefault}
	default:
		return []chain.SyncMode{chain.SyncModeAPIOnly},
			[]chain.AddressScheme{chain.AddressSchemeGenDefault}
	}
}

// UpdateNetworkFees refreshes the fee schedule and height of every
// registered network from the query service. Networks that fail to refresh
// keep their previous schedule; the first failure is reported after all
// networks have been attempted.
func (s *System) UpdateNetworkFees(ctx context.Context) ([]*chain.Network, error) {
	if s.queryc == nil {
		return nil, ErrNoQueryService
	}

	var updated []*chain.Network
	var errs []error
	for _, n := range s.Networks() {
		b, err := s.queryc.GetBlockchain(ctx, n.UID())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.UID(), err))
			continue
		}
		base, ok := n.BaseUnitFor(n.NativeCurrency())
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no base unit", n.UID()))
			continue
		}
		fees, err := buildFees(b, base)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.UID(), err))
			continue
		}
		if err := n.SetFees(fees); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.UID(), err))
			continue
		}
		if b.BlockHeight > 0 {
			n.SetHeight(b.BlockHeight)
		}
		updated = append(updated, n)
		s.announceNetworkEvent(NetworkEvent{Kind: NetworkEventFeesUpdated, Network: n})
	}
	return updated, errors.Join(errs...)
}
