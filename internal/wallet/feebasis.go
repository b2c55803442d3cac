package wallet

import (
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/ledger"
)

// TransferFeeBasis prices a transfer: fee = pricePerCostFactor x costFactor,
// where the cost factor is the chain's fee-scaling unit (tx size, gas).
type TransferFeeBasis struct {
	pricePerCostFactor *currency.Amount
	costFactor         float64
	fee                *currency.Amount
}

// NewTransferFeeBasis builds a fee basis from its parts.
func NewTransferFeeBasis(pricePerCostFactor *currency.Amount, costFactor float64,
	fee *currency.Amount) *TransferFeeBasis {
	return &TransferFeeBasis{
		pricePerCostFactor: pricePerCostFactor,
		costFactor:         costFactor,
		fee:                fee,
	}
}

// PricePerCostFactor returns the unit price in the fee currency.
func (b *TransferFeeBasis) PricePerCostFactor() *currency.Amount { return b.pricePerCostFactor }

// CostFactor returns the chain-specific scaling factor.
func (b *TransferFeeBasis) CostFactor() float64 { return b.costFactor }

// Fee returns the total fee.
func (b *TransferFeeBasis) Fee() *currency.Amount { return b.fee }

// Currency returns the fee currency.
func (b *TransferFeeBasis) Currency() *currency.Currency {
	return b.pricePerCostFactor.Currency()
}

func feeBasisFromRaw(raw *ledger.FeeBasis, feeUnit *currency.Unit) *TransferFeeBasis {
	if raw == nil {
		return nil
	}
	return &TransferFeeBasis{
		pricePerCostFactor: currency.NewAmountFromBase(raw.PricePerCostFactor, feeUnit),
		costFactor:         raw.CostFactor,
		fee:                currency.NewAmountFromBase(raw.Fee, feeUnit),
	}
}

func (b *TransferFeeBasis) toRaw() *ledger.FeeBasis {
	if b == nil {
		return nil
	}
	return &ledger.FeeBasis{
		PricePerCostFactor: b.pricePerCostFactor.BaseValue(),
		CostFactor:         b.costFactor,
		Fee:                b.fee.BaseValue(),
	}
}
