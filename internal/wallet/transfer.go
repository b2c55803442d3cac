package wallet

import (
	"sync"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/ledger"
)

// Direction is the value flow of a transfer relative to the account.
type Direction int

const (
	DirectionSent Direction = iota
	DirectionReceived
	DirectionRecovered
)

func (d Direction) String() string {
	switch d {
	case DirectionReceived:
		return "received"
	case DirectionRecovered:
		return "recovered"
	default:
		return "sent"
	}
}

func directionFromRaw(raw ledger.TransferDirection) Direction {
	switch raw {
	case ledger.TransferReceived:
		return DirectionReceived
	case ledger.TransferRecovered:
		return DirectionRecovered
	default:
		return DirectionSent
	}
}

// Transfer is a single value movement within a wallet. Its identity fields
// are immutable; only the state advances, driven exclusively by engine
// callbacks.
type Transfer struct {
	native ledger.TransferHandle
	wallet *Wallet

	amount    *currency.Amount
	direction Direction
	source    chain.Address
	target    chain.Address
	feeBasis  *TransferFeeBasis

	mu    sync.RWMutex
	hash  string // defined only once signed/submitted
	state TransferState
}

// Wallet returns the owning wallet.
func (t *Transfer) Wallet() *Wallet { return t.wallet }

// Amount returns the transferred amount.
func (t *Transfer) Amount() *currency.Amount { return t.amount }

// Direction returns the value flow direction.
func (t *Transfer) Direction() Direction { return t.direction }

// Source returns the source address, empty if unknown.
func (t *Transfer) Source() chain.Address { return t.source }

// Target returns the target address, empty if unknown.
func (t *Transfer) Target() chain.Address { return t.target }

// FeeBasis returns the transfer's fee basis, nil when not priced.
func (t *Transfer) FeeBasis() *TransferFeeBasis { return t.feeBasis }

// Unit returns the amount's unit.
func (t *Transfer) Unit() *currency.Unit { return t.amount.Unit() }

// Hash returns the transaction hash; ok is false before signing.
func (t *Transfer) Hash() (hash string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hash, t.hash != ""
}

// State returns the current lifecycle state.
func (t *Transfer) State() TransferState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Confirmations returns the confirmation count at the network's current
// height; ok is false until the transfer is included.
func (t *Transfer) Confirmations() (count uint64, ok bool) {
	return t.ConfirmationsAt(t.wallet.manager.Network().Height())
}

// ConfirmationsAt returns 1 + height - blockNumber when the transfer is
// included at or below height; undefined (ok false) otherwise.
func (t *Transfer) ConfirmationsAt(height uint64) (count uint64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := t.state.Confirmation
	if c == nil || height < c.BlockNumber {
		return 0, false
	}
	return 1 + height - c.BlockNumber, true
}

// setState records a state transition and returns the previous state. Called
// only from the manager's serialization queue.
func (t *Transfer) setState(next TransferState) TransferState {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.state
	t.state = next
	return old
}

func (t *Transfer) setHash(hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hash == "" {
		t.hash = hash
	}
}
