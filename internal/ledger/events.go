package ledger

import "math/big"

// Raw event structures the engine reports through Callbacks. Each carries
// only handles and plain values; events for torn-down objects are expected
// and must resolve to nothing on the receiving side.

// ManagerStateKind is the raw connection state of a native manager.
type ManagerStateKind int

const (
	ManagerStateCreated ManagerStateKind = iota
	ManagerStateConnected
	ManagerStateSyncing
	ManagerStateDisconnected
	ManagerStateDeleted
)

// DisconnectReasonKind categorizes why a manager disconnected.
type DisconnectReasonKind int

const (
	DisconnectRequested DisconnectReasonKind = iota
	DisconnectUnknown
	DisconnectPosix
)

// DisconnectReason carries the category plus errno detail for posix errors.
type DisconnectReason struct {
	Kind    DisconnectReasonKind
	Errno   int
	Message string
}

// SyncStoppedReasonKind categorizes why a sync ended.
type SyncStoppedReasonKind int

const (
	SyncStoppedComplete SyncStoppedReasonKind = iota
	SyncStoppedRequested
	SyncStoppedUnknown
	SyncStoppedPosix
)

// SyncStoppedReason carries the category plus errno detail for posix errors.
type SyncStoppedReason struct {
	Kind    SyncStoppedReasonKind
	Errno   int
	Message string
}

// ManagerEventKind enumerates raw wallet-manager events.
type ManagerEventKind int

const (
	ManagerEventCreated ManagerEventKind = iota
	ManagerEventChanged
	ManagerEventDeleted
	ManagerEventWalletAdded
	ManagerEventWalletChanged
	ManagerEventWalletDeleted
	ManagerEventSyncStarted
	ManagerEventSyncContinues
	ManagerEventSyncStopped
	ManagerEventSyncRecommended
	ManagerEventBlockHeightUpdated
)

// ManagerEvent is one raw wallet-manager event. Only the fields relevant to
// Kind are set.
type ManagerEvent struct {
	Kind ManagerEventKind

	OldState ManagerStateKind
	NewState ManagerStateKind
	Reason   *DisconnectReason

	Wallet WalletHandle

	SyncPercent   float32
	SyncTimestamp uint64
	SyncReason    *SyncStoppedReason
	SyncDepth     SyncDepth

	Height uint64
}

// TransferStateKind is the raw state of a native transfer.
type TransferStateKind int

const (
	TransferStateCreated TransferStateKind = iota
	TransferStateSigned
	TransferStateSubmitted
	TransferStateIncluded
	TransferStateFailed
	TransferStateDeleted
)

// Confirmation carries inclusion detail for an included transfer.
type Confirmation struct {
	BlockNumber      uint64
	TransactionIndex uint64
	Timestamp        uint64
	Fee              *big.Int // nil when the engine cannot attribute a fee
	Success          bool
	Message          string
}

// SubmitErrorKind categorizes a failed submission.
type SubmitErrorKind int

const (
	SubmitErrorUnknown SubmitErrorKind = iota
	SubmitErrorPosix
)

// SubmitError is carried as data on a failed transfer, never thrown.
type SubmitError struct {
	Kind    SubmitErrorKind
	Errno   int
	Message string
}

// TransferState is the raw transfer state with per-kind detail.
type TransferState struct {
	Kind         TransferStateKind
	Confirmation *Confirmation // set when Kind == TransferStateIncluded
	Submit       *SubmitError  // set when Kind == TransferStateFailed
}

// TransferEventKind enumerates raw transfer events.
type TransferEventKind int

const (
	TransferEventCreated TransferEventKind = iota
	TransferEventChanged
	TransferEventDeleted
)

// TransferEvent is one raw transfer event.
type TransferEvent struct {
	Kind     TransferEventKind
	OldState TransferState
	NewState TransferState
}

// WalletEventKind enumerates raw wallet events.
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
	WalletEventFeeBasisEstimated
)

// WalletEvent is one raw wallet event.
type WalletEvent struct {
	Kind WalletEventKind

	Transfer TransferHandle
	Balance  *big.Int // base units, WalletEventBalanceUpdated

	// Fee estimation completion, keyed back to the issuing request.
	Cookie      uint64
	FeeBasis    *FeeBasis
	EstimateErr *SubmitError // nil on success; category only
}

// TransactionChangeOp is the persistence operation the engine requests.
type TransactionChangeOp int

const (
	TransactionAdded TransactionChangeOp = iota
	TransactionUpdated
	TransactionDeleted
)

// TransactionChange is a persistence notification for one transaction.
type TransactionChange struct {
	Op   TransactionChangeOp
	TxID string
	Raw  []byte
}

// Callbacks is the registration struct through which the engine reports
// events. System is the opaque token the core registered for itself; every
// callback hands it back so the receiving side can re-locate the system.
type Callbacks struct {
	System uint64

	ManagerEvent func(system uint64, mgr ManagerHandle, ev ManagerEvent)
	WalletEvent  func(system uint64, mgr ManagerHandle, w WalletHandle, ev WalletEvent)
	TransferEvent func(system uint64, mgr ManagerHandle, w WalletHandle,
		t TransferHandle, ev TransferEvent)

	// Persistence notifications, forwarded verbatim by the core.
	SaveBlock         func(system uint64, mgr ManagerHandle, height uint64, data []byte)
	SavePeer          func(system uint64, mgr ManagerHandle, address string, data []byte)
	ChangeTransaction func(system uint64, mgr ManagerHandle, change TransactionChange)
}

// ClientContext tags one engine data request. Session identifies the
// request for the matching Announce* call.
type ClientContext struct {
	Session uint64
	System  uint64
	Manager ManagerHandle
}

// Client is the request struct through which the engine asks the core for
// blockchain data. Every request is answered asynchronously via the
// corresponding Announce* method on the engine.
type Client struct {
	GetBlockNumber  func(ctx ClientContext)
	GetTransactions func(ctx ClientContext, addresses []string, begin, end uint64)
	GetBalance      func(ctx ClientContext, addresses []string)
	SubmitTransaction func(ctx ClientContext, txID string, data []byte)

	// Account-model chains.
	GetLogs     func(ctx ClientContext, contract string, topics []string, begin, end uint64)
	GetBlocks   func(ctx ClientContext, begin, end uint64)
	GetTokens   func(ctx ClientContext)
	GetNonce    func(ctx ClientContext, address string)
	GetGasPrice func(ctx ClientContext)
	EstimateGas func(ctx ClientContext, from, to string, amount *big.Int, data []byte)
}
