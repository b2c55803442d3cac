package chain

import (
	"math/big"
	"testing"

	"github.com/coinharbor/walletcore/internal/currency"
)

func TestBuiltinNetworks(t *testing.T) {
	for _, uid := range BuiltinUIDs() {
		n, ok := Builtin(uid)
		if !ok {
			t.Fatalf("builtin %s not registered", uid)
		}
		if n.UID() != uid {
			t.Errorf("UID = %s, want %s", n.UID(), uid)
		}
		if len(n.Fees()) == 0 {
			t.Errorf("%s: fee schedule must be non-empty", uid)
		}
		if len(n.SupportedModes()) == 0 || len(n.SupportedSchemes()) == 0 {
			t.Errorf("%s: missing modes or schemes", uid)
		}
		if !n.HasCurrency(n.NativeCurrency()) {
			t.Errorf("%s: native currency not associated", uid)
		}
	}
}

func TestMinimumFeeIsSlowest(t *testing.T) {
	n := BitcoinMainnet()

	min := n.MinimumFee()
	for _, fee := range n.Fees() {
		if fee.ConfirmationTimeMS > min.ConfirmationTimeMS {
			t.Errorf("minimum fee target %dms is not the slowest (%dms exists)",
				min.ConfirmationTimeMS, fee.ConfirmationTimeMS)
		}
	}
	// Slowest target must also be the cheapest price in a sane schedule.
	for _, fee := range n.Fees() {
		if min.PricePerCostFactor.Gt(fee.PricePerCostFactor) {
			t.Errorf("minimum fee price %s exceeds %s", min.PricePerCostFactor, fee.PricePerCostFactor)
		}
	}
}

func TestSetFeesRejectsEmpty(t *testing.T) {
	n := BitcoinMainnet()

	if err := n.SetFees(nil); err != ErrEmptyFeeSchedule {
		t.Errorf("SetFees(nil) err = %v, want ErrEmptyFeeSchedule", err)
	}

	sat, _ := n.BaseUnitFor(n.NativeCurrency())
	fees := []*NetworkFee{{
		UID:                "custom",
		ConfirmationTimeMS: 1000,
		PricePerCostFactor: currency.NewAmountFromBase(big.NewInt(1), sat),
	}}
	if err := n.SetFees(fees); err != nil {
		t.Fatalf("SetFees failed: %v", err)
	}
	if got := n.MinimumFee().UID; got != "custom" {
		t.Errorf("MinimumFee after SetFees = %s, want custom", got)
	}
}

func TestModeAndSchemeSupport(t *testing.T) {
	n := EthereumMainnet()

	if !n.SupportsMode(SyncModeAPIOnly) {
		t.Error("ethereum should support api_only")
	}
	if n.SupportsMode(SyncModeAPIWithP2PSubmit) {
		t.Error("ethereum should not support api_with_p2p_submit")
	}
	if !n.SupportsScheme(AddressSchemeETHDefault) {
		t.Error("ethereum should support eth_default")
	}
	if n.SupportsScheme(AddressSchemeBTCSegwit) {
		t.Error("ethereum should not support btc_segwit")
	}
}

func TestHeightUpdates(t *testing.T) {
	n := BitcoinMainnet()

	n.SetHeight(800_000)
	if n.Height() != 800_000 {
		t.Errorf("Height = %d, want 800000", n.Height())
	}
	// A reorg may legally report a lower height; last report wins.
	n.SetHeight(799_999)
	if n.Height() != 799_999 {
		t.Errorf("Height = %d, want 799999", n.Height())
	}
}

func TestUnitsForCurrency(t *testing.T) {
	n := EthereumMainnet()
	eth := n.NativeCurrency()

	base, ok := n.BaseUnitFor(eth)
	if !ok || base.Decimals() != 0 {
		t.Fatalf("base unit missing or scaled: %v", base)
	}
	def, ok := n.DefaultUnitFor(eth)
	if !ok || def.Code() != "ETH" {
		t.Errorf("default unit = %v, want ETH", def)
	}
	if !base.IsCompatible(def) {
		t.Error("units of one currency must be compatible")
	}
}
