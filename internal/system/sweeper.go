package system

import (
	"context"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/query"
	"github.com/coinharbor/walletcore/internal/wallet"
)

// CreateSweeper prepares a sweep of a foreign key into a wallet. The key's
// confirmed transaction history is fetched from the query service and its
// incoming value accumulated; the returned sweeper is validated and ready
// for estimation.
func (s *System) CreateSweeper(ctx context.Context, m *wallet.Manager, w *wallet.Wallet,
	source chain.Address) (*wallet.Sweeper, error) {

	sw, err := wallet.NewSweeper(m, w, source)
	if err != nil {
		return nil, err
	}
	if s.queryc == nil {
		return nil, ErrNoQueryService
	}

	txs, err := s.queryc.GetTransactions(ctx, m.Network().UID(),
		[]string{string(source)}, 0, ^uint64(0), false)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if tx.Status != "confirmed" {
			continue
		}
		for _, tr := range tx.Transfers {
			if tr.To != string(source) {
				continue
			}
			v, perr := query.ParseAmount(tr.Amount)
			if perr != nil {
				return nil, perr
			}
			if aerr := sw.AddFunds(currency.NewAmountFromBase(v, w.Unit())); aerr != nil {
				return nil, aerr
			}
		}
	}

	if err := sw.Validate(); err != nil {
		return nil, err
	}
	return sw, nil
}
