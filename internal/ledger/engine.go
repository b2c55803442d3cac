// Package ledger defines the boundary to the external ledger engine: the
// native component that performs chain sync, validation and signing. The
// core consumes the engine through this narrow interface and receives its
// callbacks as raw, handle-tagged events. Everything in this package is
// plain data; resolving handles to managed objects is the system's job.
package ledger

import (
	"math/big"
	"time"
)

// Native handles issued by the engine. They are tokens, not references:
// the engine may report events for handles the core has torn down.
type (
	ManagerHandle  uint64
	WalletHandle   uint64
	TransferHandle uint64
)

// SyncDepth selects how far back SyncToDepth rewinds.
type SyncDepth int

const (
	SyncDepthFromLastConfirmedSend SyncDepth = iota
	SyncDepthFromLastTrustedBlock
	SyncDepthFullResync
)

// ManagerConfig carries everything the engine needs to instantiate a
// wallet manager for one network and account.
type ManagerConfig struct {
	NetworkUID       string
	AccountUID       string
	AccountTimestamp time.Time
	Mode             string
	AddressScheme    string
	StoragePath      string
}

// WalletDescriptor describes a native wallet so the core can build its
// counterpart object.
type WalletDescriptor struct {
	CurrencyUID string
	Address     string
	Balance     *big.Int // base units
}

// TransferDirection is the value flow relative to the account.
type TransferDirection int

const (
	TransferSent TransferDirection = iota
	TransferReceived
	TransferRecovered
)

// TransferDescriptor describes a native transfer.
type TransferDescriptor struct {
	CurrencyUID string
	Amount      *big.Int // base units
	Direction   TransferDirection
	Source      string
	Target      string
	Hash        string // empty until signed
	FeeBasis    *FeeBasis
}

// TransferRequest carries the parameters of a user-created transfer.
// Attributes are network-specific key/value pairs (destination tag, memo).
type TransferRequest struct {
	Target     string
	Amount     *big.Int // base units
	FeeBasis   *FeeBasis
	Attributes map[string]string
}

// FeeBasis is the raw engine form of a transfer fee basis. Fee is the
// authoritative total; price and cost factor explain it.
type FeeBasis struct {
	PricePerCostFactor *big.Int // base units of the fee currency
	CostFactor         float64  // tx size, gas, ... chain-specific
	Fee                *big.Int // base units of the fee currency
}

// LimitEstimate is the engine's first-pass answer to "how much can this
// wallet send". When NeedFeeEstimate is false the amount is exact and no
// fee feedback loop exists for the asset; when IsZeroIfInsufficientFunds
// is set a zero amount means the balance cannot cover any transfer.
type LimitEstimate struct {
	Amount                    *big.Int
	NeedFeeEstimate           bool
	IsZeroIfInsufficientFunds bool
}

// Engine is the consumed ledger-engine interface. Connect, sync and
// transfer operations are commands; the engine's callbacks are the sole
// authority for resulting state transitions. No method blocks on network
// I/O; answers arrive through Callbacks.
type Engine interface {
	// SetCallbacks registers the event sink before any manager exists.
	SetCallbacks(cb Callbacks)
	// SetClient registers the data-request sink (blockchain queries the
	// engine needs answered, each tagged with a session id).
	SetClient(cl Client)

	CreateManager(cfg ManagerConfig) (ManagerHandle, error)
	Connect(mgr ManagerHandle, peer string) error
	Disconnect(mgr ManagerHandle) error
	Sync(mgr ManagerHandle) error
	SyncToDepth(mgr ManagerHandle, depth SyncDepth) error
	SetNetworkReachable(mgr ManagerHandle, reachable bool) error
	ReleaseManager(mgr ManagerHandle)

	RegisterWallet(mgr ManagerHandle, currencyUID string) (WalletHandle, error)
	DescribeWallet(mgr ManagerHandle, w WalletHandle) (WalletDescriptor, error)

	CreateTransfer(mgr ManagerHandle, w WalletHandle, req TransferRequest) (TransferHandle, error)
	DescribeTransfer(mgr ManagerHandle, t TransferHandle) (TransferDescriptor, error)
	SubmitTransfer(mgr ManagerHandle, w WalletHandle, t TransferHandle, paperKey string) error

	// EstimateFeeBasis answers asynchronously with a WalletFeeBasisEstimated
	// event carrying the same cookie.
	EstimateFeeBasis(mgr ManagerHandle, w WalletHandle, cookie uint64,
		target string, amount *big.Int, pricePerCostFactor *big.Int) error
	// EstimateLimit is the synchronous first pass of limit estimation.
	EstimateLimit(mgr ManagerHandle, w WalletHandle, asMaximum bool) (LimitEstimate, error)

	// Announce* deliver answers to Client requests, keyed by session id.
	AnnounceBlockNumber(session uint64, height uint64, err error)
	AnnounceTransactions(session uint64, txs []TransactionBlob, err error)
	AnnounceBalance(session uint64, balance *big.Int, err error)
	AnnounceSubmit(session uint64, txID string, err error)
	AnnounceNonce(session uint64, address string, nonce uint64, err error)
	AnnounceGasPrice(session uint64, price *big.Int, err error)
	AnnounceGasEstimate(session uint64, gas *big.Int, err error)
	AnnounceLogs(session uint64, logs []LogBlob, err error)
	AnnounceBlocks(session uint64, blocks []uint64, err error)
	AnnounceTokens(session uint64, tokens []TokenBlob, err error)
}

// TransactionBlob is a raw transaction as fetched from the query service.
type TransactionBlob struct {
	ID          string
	Raw         []byte
	BlockHeight uint64
	Timestamp   uint64
	Status      string
}

// LogBlob is a raw contract log entry (account-model chains).
type LogBlob struct {
	Hash   string
	Data   []byte
	Topics []string
}

// TokenBlob describes a token contract (account-model chains).
type TokenBlob struct {
	Address  string
	Symbol   string
	Name     string
	Decimals uint8
}
