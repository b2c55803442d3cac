package wallet

import (
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/ledger"
)

// Application-facing events for managers, wallets and transfers. Each kind
// is a tagged variant; only the fields named by the kind are set. Events
// for one entity are announced in the order the engine produced them.

// SyncStoppedReason explains why a sync ended.
type SyncStoppedReason struct {
	Kind    ledger.SyncStoppedReasonKind
	Errno   int
	Message string
}

// ManagerEventKind enumerates manager events.
type ManagerEventKind int

const (
	ManagerEventCreated ManagerEventKind = iota
	ManagerEventChanged
	ManagerEventDeleted
	ManagerEventWalletAdded
	ManagerEventWalletChanged
	ManagerEventWalletDeleted
	ManagerEventSyncStarted
	ManagerEventSyncProgress
	ManagerEventSyncEnded
	ManagerEventSyncRecommended
	ManagerEventBlockUpdated
)

// ManagerEvent is one manager event.
type ManagerEvent struct {
	Kind ManagerEventKind

	Old ManagerState // ManagerEventChanged
	New ManagerState

	Wallet *Wallet // wallet membership events

	SyncPercent   float32 // ManagerEventSyncProgress
	SyncTimestamp uint64
	SyncReason    *SyncStoppedReason // ManagerEventSyncEnded
	SyncDepth     ledger.SyncDepth   // ManagerEventSyncRecommended

	Height uint64 // ManagerEventBlockUpdated
}

// WalletEventKind enumerates wallet events.
type WalletEventKind int

const (
	WalletEventCreated WalletEventKind = iota
	WalletEventDeleted
	WalletEventTransferAdded
	WalletEventTransferChanged
	WalletEventTransferSubmitted
	WalletEventTransferDeleted
	WalletEventBalanceUpdated
	WalletEventFeeBasisUpdated
)

// WalletEvent is one wallet event.
type WalletEvent struct {
	Kind WalletEventKind

	Transfer *Transfer         // transfer membership events
	Balance  *currency.Amount  // WalletEventBalanceUpdated
	FeeBasis *TransferFeeBasis // WalletEventFeeBasisUpdated
}

// TransferEventKind enumerates transfer events.
type TransferEventKind int

const (
	TransferEventCreated TransferEventKind = iota
	TransferEventChanged
	TransferEventDeleted
)

// TransferEvent is one transfer event.
type TransferEvent struct {
	Kind TransferEventKind

	Old TransferState // TransferEventChanged
	New TransferState
}

// Announcer receives cooked events from a manager and forwards them to the
// application listener in arrival order. The system implements it.
type Announcer interface {
	AnnounceManagerEvent(m *Manager, ev ManagerEvent)
	AnnounceWalletEvent(m *Manager, w *Wallet, ev WalletEvent)
	AnnounceTransferEvent(m *Manager, w *Wallet, t *Transfer, ev TransferEvent)
}
