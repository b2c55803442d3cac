package system

import (
	"context"
	"math/big"

	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/internal/query"
)

// The engine asks for blockchain data through ledger.Client. Every request
// is answered asynchronously with the matching Announce* call, carrying the
// session id the request came with; a request that cannot be served is
// answered with an error, never left dangling.

func (s *System) client() ledger.Client {
	return ledger.Client{
		GetBlockNumber:    s.clientGetBlockNumber,
		GetTransactions:   s.clientGetTransactions,
		GetBalance:        s.clientGetBalance,
		SubmitTransaction: s.clientSubmitTransaction,

		GetLogs:     s.clientGetLogs,
		GetBlocks:   s.clientGetBlocks,
		GetTokens:   s.clientGetTokens,
		GetNonce:    s.clientGetNonce,
		GetGasPrice: s.clientGetGasPrice,
		EstimateGas: s.clientEstimateGas,
	}
}

// networkUID resolves the request's manager to its network uid.
func (s *System) networkUID(ctx ledger.ClientContext) (string, bool) {
	m, ok := s.managerFor(ctx.Manager)
	if !ok {
		return "", false
	}
	return m.Network().UID(), true
}

func (s *System) clientGetBlockNumber(ctx ledger.ClientContext) {
	go func() {
		uid, ok := s.networkUID(ctx)
		if !ok {
			s.engine.AnnounceBlockNumber(ctx.Session, 0, ErrDestroyed)
			return
		}
		if s.queryc == nil {
			s.engine.AnnounceBlockNumber(ctx.Session, 0, ErrNoQueryService)
			return
		}
		height, err := s.queryc.GetBlockHeight(context.Background(), uid)
		s.engine.AnnounceBlockNumber(ctx.Session, height, err)
	}()
}

func (s *System) clientGetTransactions(ctx ledger.ClientContext, addresses []string, begin, end uint64) {
	go func() {
		uid, ok := s.networkUID(ctx)
		if !ok {
			s.engine.AnnounceTransactions(ctx.Session, nil, ErrDestroyed)
			return
		}
		if s.queryc == nil {
			s.engine.AnnounceTransactions(ctx.Session, nil, ErrNoQueryService)
			return
		}
		txs, err := s.queryc.GetTransactions(context.Background(), uid, addresses, begin, end, true)
		if err != nil {
			s.engine.AnnounceTransactions(ctx.Session, nil, err)
			return
		}
		blobs := make([]ledger.TransactionBlob, 0, len(txs))
		for _, tx := range txs {
			blobs = append(blobs, ledger.TransactionBlob{
				ID:          tx.Hash,
				Raw:         tx.Raw,
				BlockHeight: tx.BlockHeight,
				Timestamp:   tx.Timestamp,
				Status:      tx.Status,
			})
		}
		s.engine.AnnounceTransactions(ctx.Session, blobs, nil)
	}()
}

func (s *System) clientGetBalance(ctx ledger.ClientContext, addresses []string) {
	go func() {
		uid, ok := s.networkUID(ctx)
		if !ok {
			s.engine.AnnounceBalance(ctx.Session, nil, ErrDestroyed)
			return
		}
		if s.queryc == nil {
			s.engine.AnnounceBalance(ctx.Session, nil, ErrNoQueryService)
			return
		}
		balances, err := s.queryc.GetBalances(context.Background(), uid, addresses)
		if err != nil {
			s.engine.AnnounceBalance(ctx.Session, nil, err)
			return
		}
		total := new(big.Int)
		for _, b := range balances {
			v, perr := query.ParseAmount(b.Balance)
			if perr != nil {
				s.engine.AnnounceBalance(ctx.Session, nil, perr)
				return
			}
			total.Add(total, v)
		}
		s.engine.AnnounceBalance(ctx.Session, total, nil)
	}()
}

func (s *System) clientSubmitTransaction(ctx ledger.ClientContext, txID string, data []byte) {
	go func() {
		uid, ok := s.networkUID(ctx)
		if !ok {
			s.engine.AnnounceSubmit(ctx.Session, txID, ErrDestroyed)
			return
		}
		if s.queryc == nil {
			s.engine.AnnounceSubmit(ctx.Session, txID, ErrNoQueryService)
			return
		}
		err := s.queryc.SubmitTransaction(context.Background(), uid, txID, data)
		s.engine.AnnounceSubmit(ctx.Session, txID, err)
	}()
}

func (s *System) clientGetTokens(ctx ledger.ClientContext) {
	go func() {
		uid, ok := s.networkUID(ctx)
		if !ok {
			s.engine.AnnounceTokens(ctx.Session, nil, ErrDestroyed)
			return
		}
		if s.queryc == nil {
			s.engine.AnnounceTokens(ctx.Session, nil, ErrNoQueryService)
			return
		}
		currencies, err := s.queryc.GetCurrencies(context.Background(), uid)
		if err != nil {
			s.engine.AnnounceTokens(ctx.Session, nil, err)
			return
		}
		var tokens []ledger.TokenBlob
		for _, c := range currencies {
			if c.Address == "" {
				continue // native asset, not a token contract
			}
			var decimals uint8
			for _, d := range c.Denominations {
				if d.Decimals > decimals {
					decimals = d.Decimals
				}
			}
			tokens = append(tokens, ledger.TokenBlob{
				Address:  c.Address,
				Symbol:   c.Code,
				Name:     c.Name,
				Decimals: decimals,
			})
		}
		s.engine.AnnounceTokens(ctx.Session, tokens, nil)
	}()
}

// The query service has no endpoints for the remaining account-model
// requests; they are answered with an error so the engine can fall back.

func (s *System) clientGetLogs(ctx ledger.ClientContext, contract string, topics []string, begin, end uint64) {
	go s.engine.AnnounceLogs(ctx.Session, nil, ErrNoQueryService)
}

func (s *System) clientGetBlocks(ctx ledger.ClientContext, begin, end uint64) {
	go s.engine.AnnounceBlocks(ctx.Session, nil, ErrNoQueryService)
}

func (s *System) clientGetNonce(ctx ledger.ClientContext, address string) {
	go s.engine.AnnounceNonce(ctx.Session, address, 0, ErrNoQueryService)
}

func (s *System) clientGetGasPrice(ctx ledger.ClientContext) {
	go s.engine.AnnounceGasPrice(ctx.Session, nil, ErrNoQueryService)
}

func (s *System) clientEstimateGas(ctx ledger.ClientContext, from, to string, amount *big.Int, data []byte) {
	go s.engine.AnnounceGasEstimate(ctx.Session, nil, ErrNoQueryService)
}
