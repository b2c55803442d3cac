// Package wallet implements the wallet-manager / wallet / transfer layer of
// the core: lifecycle state machines driven by ledger-engine callbacks, a
// per-manager serialization queue, and fee/limit estimation.
package wallet

import (
	"fmt"
	"sync"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/ledger"
)

// Wallet holds the transfers of one currency under a manager. The balance
// is derived by the ledger engine from the transfer set; the wallet only
// records what the engine last reported.
type Wallet struct {
	native  ledger.WalletHandle
	manager *Manager

	cur     *currency.Currency
	unit    *currency.Unit // balance unit (the currency's base unit)
	address chain.Address

	mu            sync.RWMutex
	balance       *currency.Amount
	transfers     []*Transfer // discovery order
	transferIndex map[ledger.TransferHandle]*Transfer
}

func newWallet(m *Manager, native ledger.WalletHandle, desc ledger.WalletDescriptor) (*Wallet, error) {
	cur, ok := m.network.CurrencyByUID(desc.CurrencyUID)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrCurrencyNotSupported, desc.CurrencyUID, m.network.UID())
	}
	unit, ok := m.network.BaseUnitFor(cur)
	if !ok {
		return nil, fmt.Errorf("%w: no units for %s", ErrCurrencyNotSupported, desc.CurrencyUID)
	}

	w := &Wallet{
		native:        native,
		manager:       m,
		cur:           cur,
		unit:          unit,
		address:       chain.Address(desc.Address),
		transferIndex: make(map[ledger.TransferHandle]*Transfer),
	}
	if desc.Balance != nil {
		w.balance = currency.NewAmountFromBase(desc.Balance, unit)
	} else {
		w.balance = currency.Zero(unit)
	}
	return w, nil
}

// Manager returns the owning manager.
func (w *Wallet) Manager() *Manager { return w.manager }

// Native returns the engine handle backing this wallet.
func (w *Wallet) Native() ledger.WalletHandle { return w.native }

// Currency returns the wallet's currency.
func (w *Wallet) Currency() *currency.Currency { return w.cur }

// Unit returns the wallet's balance unit.
func (w *Wallet) Unit() *currency.Unit { return w.unit }

// Address returns the wallet's receive address for its manager's scheme.
func (w *Wallet) Address() chain.Address { return w.address }

// Balance returns the last balance the engine reported.
func (w *Wallet) Balance() *currency.Amount {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance
}

// Transfers returns the wallet's transfers in discovery order.
func (w *Wallet) Transfers() []*Transfer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Transfer, len(w.transfers))
	copy(out, w.transfers)
	return out
}

// TransferByHash finds a transfer by transaction hash.
func (w *Wallet) TransferByHash(hash string) (*Transfer, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, t := range w.transfers {
		if h, ok := t.Hash(); ok && h == hash {
			return t, true
		}
	}
	return nil, false
}

// CreateTransfer asks the engine to build an outgoing transfer. The
// returned transfer is in the created state; submission and all further
// transitions arrive through engine callbacks.
func (w *Wallet) CreateTransfer(target chain.Address, amount *currency.Amount,
	feeBasis *TransferFeeBasis, attributes map[string]string) (*Transfer, error) {
	if !amount.Unit().IsCompatible(w.unit) {
		return nil, currency.ErrIncompatibleUnits
	}

	native, err := w.manager.engine.CreateTransfer(w.manager.native, w.native, ledger.TransferRequest{
		Target:     string(target),
		Amount:     amount.BaseValue(),
		FeeBasis:   feeBasis.toRaw(),
		Attributes: attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	// Idempotent against the engine's transfer-added callback racing us.
	return w.transferForHandle(native)
}

func (w *Wallet) setBalance(b *currency.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = b
}

// transferForHandle resolves a native transfer handle to its counterpart,
// constructing and registering it on first sight so exactly one live object
// exists per handle.
func (w *Wallet) transferForHandle(h ledger.TransferHandle) (*Transfer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.transferIndex[h]; ok {
		return t, nil
	}

	desc, err := w.manager.engine.DescribeTransfer(w.manager.native, h)
	if err != nil {
		return nil, err
	}

	t := &Transfer{
		native:    h,
		wallet:    w,
		amount:    currency.NewAmountFromBase(desc.Amount, w.unit),
		direction: directionFromRaw(desc.Direction),
		source:    chain.Address(desc.Source),
		target:    chain.Address(desc.Target),
		feeBasis:  feeBasisFromRaw(desc.FeeBasis, w.manager.feeUnit()),
		hash:      desc.Hash,
		state:     TransferState{Kind: TransferCreated},
	}
	w.transferIndex[h] = t
	w.transfers = append(w.transfers, t)
	return t, nil
}

// lookupTransfer resolves without creating.
func (w *Wallet) lookupTransfer(h ledger.TransferHandle) (*Transfer, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.transferIndex[h]
	return t, ok
}
