package wallet

import (
	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/currency"
)

// Sweeper recovers the spendable value held by a foreign key - one the
// account does not otherwise track - into a wallet. The caller feeds it the
// key's transactions (fetched from the query service), validates, then
// estimates and submits a sweep transfer.
type Sweeper struct {
	manager *Manager
	wallet  *Wallet
	source  chain.Address // address of the foreign key

	balance *currency.Amount
	txCount int
}

// NewSweeper validates the sweep preconditions: the wallet must hold the
// network's native currency and belong to the manager, and the key address
// must be non-empty.
func NewSweeper(m *Manager, w *Wallet, source chain.Address) (*Sweeper, error) {
	if source == "" {
		return nil, ErrSweepInvalidKey
	}
	if w.manager != m {
		return nil, ErrSweepInvalidSourceWallet
	}
	if !w.cur.Equal(m.network.NativeCurrency()) {
		return nil, ErrSweepUnsupportedCurrency
	}
	return &Sweeper{
		manager: m,
		wallet:  w,
		source:  source,
		balance: currency.Zero(w.unit),
	}, nil
}

// Source returns the foreign key's address.
func (s *Sweeper) Source() chain.Address { return s.source }

// Balance returns the accumulated sweepable value.
func (s *Sweeper) Balance() *currency.Amount { return s.balance }

// AddFunds accumulates one unspent amount discovered for the key.
func (s *Sweeper) AddFunds(amount *currency.Amount) error {
	sum, err := s.balance.Add(amount)
	if err != nil {
		return ErrSweepUnableToSweep
	}
	s.balance = sum
	s.txCount++
	return nil
}

// Validate checks that the key holds anything worth sweeping.
func (s *Sweeper) Validate() error {
	if s.txCount == 0 {
		return ErrSweepNoTransfersFound
	}
	if s.balance.IsZero() {
		return ErrSweepInsufficientFunds
	}
	return nil
}

// Estimate prices the sweep transfer into the wallet's receive address.
func (s *Sweeper) Estimate(fee *chain.NetworkFee, completion func(*TransferFeeBasis, error)) {
	if err := s.Validate(); err != nil {
		s.manager.completionQueue.Enqueue(func() { completion(nil, err) })
		return
	}
	s.wallet.EstimateFee(s.wallet.address, s.balance, fee, completion)
}

// Submit creates the sweep transfer: balance minus fee, from the foreign
// key's address into the wallet.
func (s *Sweeper) Submit(feeBasis *TransferFeeBasis) (*Transfer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	amount, err := s.balance.Sub(feeBasis.Fee())
	if err != nil {
		return nil, ErrSweepUnableToSweep
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, ErrSweepInsufficientFunds
	}
	t, err := s.wallet.CreateTransfer(s.wallet.address, amount, feeBasis, nil)
	if err != nil {
		return nil, ErrSweepUnableToSweep
	}
	return t, nil
}
