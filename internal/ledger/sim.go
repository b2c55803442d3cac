package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coinharbor/walletcore/internal/event"
)

// SimEngine is an in-memory ledger engine. It honors the Engine contract -
// commands return immediately, state advances only through callbacks, and
// callbacks arrive on goroutines the caller does not own - without touching
// a real chain. The demo daemon runs on it and the system tests script it.

// Sim errors.
var (
	ErrSimUnknownManager  = errors.New("sim: unknown manager handle")
	ErrSimUnknownWallet   = errors.New("sim: unknown wallet handle")
	ErrSimUnknownTransfer = errors.New("sim: unknown transfer handle")
)

// SimConfig tunes the simulated chain.
type SimConfig struct {
	// BlockHeight is the height reported on sync.
	BlockHeight uint64
	// FeeFunc computes the fee for sending an amount. Defaults to a
	// constant 1000 base units.
	FeeFunc func(amount *big.Int) *big.Int
	// NeedFeeEstimate marks the asset as having a fee feedback loop, so
	// limit estimation must iterate.
	NeedFeeEstimate bool
	// IsZeroIfInsufficientFunds marks a zero first-pass limit as meaning
	// "balance cannot cover any transfer".
	IsZeroIfInsufficientFunds bool
	// MinimumLimit is the first-pass answer for minimum-limit estimation.
	MinimumLimit *big.Int
	// Latency delays every callback, exercising the async boundary.
	Latency time.Duration
	// FailSubmits makes every submission end in a failed transfer.
	FailSubmits bool
}

type simTransfer struct {
	desc  TransferDescriptor
	state TransferState
}

type simWallet struct {
	currencyUID string
	address     string
	balance     *big.Int
	transfers   map[TransferHandle]*simTransfer
}

type simManager struct {
	cfg     ManagerConfig
	state   ManagerStateKind
	wallets map[WalletHandle]*simWallet
	queue   *event.Queue // per-manager callback ordering
}

// SimEngine implements Engine in memory.
type SimEngine struct {
	cfg SimConfig

	mu       sync.Mutex
	cb       Callbacks
	cl       Client
	next     uint64
	session  atomic.Uint64
	managers map[ManagerHandle]*simManager

	annMu         sync.Mutex
	announcements []SimAnnouncement
}

// SimAnnouncement records one Announce* call for test inspection.
type SimAnnouncement struct {
	Kind    string
	Session uint64
	Err     error
}

// NewSimEngine creates a simulated engine.
func NewSimEngine(cfg SimConfig) *SimEngine {
	if cfg.FeeFunc == nil {
		cfg.FeeFunc = func(*big.Int) *big.Int { return big.NewInt(1000) }
	}
	if cfg.MinimumLimit == nil {
		cfg.MinimumLimit = new(big.Int)
	}
	return &SimEngine{
		cfg:      cfg,
		managers: make(map[ManagerHandle]*simManager),
	}
}

// SetCallbacks registers the event sink.
func (e *SimEngine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = cb
}

// SetClient registers the data-request sink.
func (e *SimEngine) SetClient(cl Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cl = cl
}

func (e *SimEngine) nextHandle() uint64 {
	e.next++
	return e.next
}

// emit schedules one callback on the manager's queue, preserving per-manager
// order while never running on the command caller's goroutine.
func (e *SimEngine) emit(m *simManager, fn func(cb Callbacks)) {
	cb := e.cb
	latency := e.cfg.Latency
	m.queue.Enqueue(func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		fn(cb)
	})
}

func (e *SimEngine) manager(h ManagerHandle) (*simManager, error) {
	m, ok := e.managers[h]
	if !ok {
		return nil, ErrSimUnknownManager
	}
	return m, nil
}

// CreateManager instantiates a simulated manager in the created state.
func (e *SimEngine) CreateManager(cfg ManagerConfig) (ManagerHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := ManagerHandle(e.nextHandle())
	m := &simManager{
		cfg:     cfg,
		state:   ManagerStateCreated,
		wallets: make(map[WalletHandle]*simWallet),
		queue:   event.NewQueue(),
	}
	e.managers[h] = m

	e.emit(m, func(cb Callbacks) {
		cb.ManagerEvent(cb.System, h, ManagerEvent{Kind: ManagerEventCreated})
	})
	return h, nil
}

func (e *SimEngine) setManagerState(h ManagerHandle, m *simManager,
	state ManagerStateKind, reason *DisconnectReason) {
	old := m.state
	m.state = state
	e.emit(m, func(cb Callbacks) {
		cb.ManagerEvent(cb.System, h, ManagerEvent{
			Kind:     ManagerEventChanged,
			OldState: old,
			NewState: state,
			Reason:   reason,
		})
	})
}

// Connect moves the manager to connected and runs one sync cycle.
func (e *SimEngine) Connect(h ManagerHandle, peer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return err
	}
	e.setManagerState(h, m, ManagerStateConnected, nil)
	e.runSync(h, m)
	return nil
}

// Disconnect moves the manager to disconnected(requested).
func (e *SimEngine) Disconnect(h ManagerHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return err
	}
	e.setManagerState(h, m, ManagerStateDisconnected,
		&DisconnectReason{Kind: DisconnectRequested})
	return nil
}

// Sync runs one sync cycle if connected.
func (e *SimEngine) Sync(h ManagerHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return err
	}
	if m.state != ManagerStateConnected {
		return nil // engine ignores sync requests while not connected
	}
	e.runSync(h, m)
	return nil
}

// SyncToDepth behaves like Sync; depth only affects how much history a real
// engine would rescan.
func (e *SimEngine) SyncToDepth(h ManagerHandle, depth SyncDepth) error {
	return e.Sync(h)
}

func (e *SimEngine) runSync(h ManagerHandle, m *simManager) {
	height := e.cfg.BlockHeight

	e.setManagerState(h, m, ManagerStateSyncing, nil)
	e.emit(m, func(cb Callbacks) {
		cb.ManagerEvent(cb.System, h, ManagerEvent{Kind: ManagerEventSyncStarted})
	})
	e.emit(m, func(cb Callbacks) {
		cb.ManagerEvent(cb.System, h, ManagerEvent{
			Kind:          ManagerEventSyncContinues,
			SyncPercent:   50,
			SyncTimestamp: uint64(time.Now().Unix()),
		})
	})
	e.emit(m, func(cb Callbacks) {
		cb.ManagerEvent(cb.System, h, ManagerEvent{
			Kind:   ManagerEventBlockHeightUpdated,
			Height: height,
		})
	})
	e.emit(m, func(cb Callbacks) {
		cb.ManagerEvent(cb.System, h, ManagerEvent{
			Kind:       ManagerEventSyncStopped,
			SyncReason: &SyncStoppedReason{Kind: SyncStoppedComplete},
		})
	})
	e.setManagerState(h, m, ManagerStateConnected, nil)
}

// SetNetworkReachable records the advisory flag. It never moves the state
// machine by itself.
func (e *SimEngine) SetNetworkReachable(h ManagerHandle, reachable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.manager(h)
	return err
}

// ReleaseManager drops the manager and stops its callback queue.
func (e *SimEngine) ReleaseManager(h ManagerHandle) {
	e.mu.Lock()
	m, ok := e.managers[h]
	if ok {
		delete(e.managers, h)
	}
	e.mu.Unlock()
	if ok {
		m.queue.Close()
	}
}

// RegisterWallet creates a simulated wallet for the currency.
func (e *SimEngine) RegisterWallet(h ManagerHandle, currencyUID string) (WalletHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return 0, err
	}

	wh := WalletHandle(e.nextHandle())
	m.wallets[wh] = &simWallet{
		currencyUID: currencyUID,
		address:     fmt.Sprintf("sim:%s:%d", currencyUID, wh),
		balance:     new(big.Int),
		transfers:   make(map[TransferHandle]*simTransfer),
	}

	e.emit(m, func(cb Callbacks) {
		cb.ManagerEvent(cb.System, h, ManagerEvent{
			Kind:   ManagerEventWalletAdded,
			Wallet: wh,
		})
		cb.WalletEvent(cb.System, h, wh, WalletEvent{Kind: WalletEventCreated})
	})
	return wh, nil
}

// DescribeWallet returns the wallet descriptor.
func (e *SimEngine) DescribeWallet(h ManagerHandle, wh WalletHandle) (WalletDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return WalletDescriptor{}, err
	}
	w, ok := m.wallets[wh]
	if !ok {
		return WalletDescriptor{}, ErrSimUnknownWallet
	}
	return WalletDescriptor{
		CurrencyUID: w.currencyUID,
		Address:     w.address,
		Balance:     new(big.Int).Set(w.balance),
	}, nil
}

// CreateTransfer creates a transfer in the created state.
func (e *SimEngine) CreateTransfer(h ManagerHandle, wh WalletHandle, req TransferRequest) (TransferHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return 0, err
	}
	w, ok := m.wallets[wh]
	if !ok {
		return 0, ErrSimUnknownWallet
	}

	th := TransferHandle(e.nextHandle())
	w.transfers[th] = &simTransfer{
		desc: TransferDescriptor{
			CurrencyUID: w.currencyUID,
			Amount:      new(big.Int).Set(req.Amount),
			Direction:   TransferSent,
			Source:      w.address,
			Target:      req.Target,
			FeeBasis:    req.FeeBasis,
		},
		state: TransferState{Kind: TransferStateCreated},
	}

	e.emit(m, func(cb Callbacks) {
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:     WalletEventTransferAdded,
			Transfer: th,
		})
		cb.TransferEvent(cb.System, h, wh, th, TransferEvent{Kind: TransferEventCreated})
	})
	return th, nil
}

// DescribeTransfer returns the transfer descriptor.
func (e *SimEngine) DescribeTransfer(h ManagerHandle, th TransferHandle) (TransferDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return TransferDescriptor{}, err
	}
	for _, w := range m.wallets {
		if tr, ok := w.transfers[th]; ok {
			return tr.desc, nil
		}
	}
	return TransferDescriptor{}, ErrSimUnknownTransfer
}

func (e *SimEngine) setTransferState(h ManagerHandle, m *simManager,
	wh WalletHandle, th TransferHandle, tr *simTransfer, next TransferState) {
	old := tr.state
	tr.state = next
	e.emit(m, func(cb Callbacks) {
		cb.TransferEvent(cb.System, h, wh, th, TransferEvent{
			Kind:     TransferEventChanged,
			OldState: old,
			NewState: next,
		})
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:     WalletEventTransferChanged,
			Transfer: th,
		})
	})
}

// SubmitTransfer signs and submits, then drives the transfer to included
// (or failed under SimConfig.FailSubmits), reporting every intermediate
// state in order.
func (e *SimEngine) SubmitTransfer(h ManagerHandle, wh WalletHandle, th TransferHandle, paperKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return err
	}
	w, ok := m.wallets[wh]
	if !ok {
		return ErrSimUnknownWallet
	}
	tr, ok := w.transfers[th]
	if !ok {
		return ErrSimUnknownTransfer
	}

	tr.desc.Hash = fmt.Sprintf("sim-tx-%d", th)
	e.setTransferState(h, m, wh, th, tr, TransferState{Kind: TransferStateSigned})
	e.setTransferState(h, m, wh, th, tr, TransferState{Kind: TransferStateSubmitted})
	e.emit(m, func(cb Callbacks) {
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:     WalletEventTransferSubmitted,
			Transfer: th,
		})
	})

	if e.cfg.FailSubmits {
		e.setTransferState(h, m, wh, th, tr, TransferState{
			Kind:   TransferStateFailed,
			Submit: &SubmitError{Kind: SubmitErrorPosix, Errno: 110, Message: "connection timed out"},
		})
		return nil
	}

	fee := e.cfg.FeeFunc(tr.desc.Amount)
	e.setTransferState(h, m, wh, th, tr, TransferState{
		Kind: TransferStateIncluded,
		Confirmation: &Confirmation{
			BlockNumber:      e.cfg.BlockHeight + 1,
			TransactionIndex: 0,
			Timestamp:        uint64(time.Now().Unix()),
			Fee:              fee,
			Success:          true,
		},
	})

	spent := new(big.Int).Add(tr.desc.Amount, fee)
	w.balance.Sub(w.balance, spent)
	balance := new(big.Int).Set(w.balance)
	e.emit(m, func(cb Callbacks) {
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:    WalletEventBalanceUpdated,
			Balance: balance,
		})
	})
	return nil
}

// EstimateFeeBasis answers asynchronously with a fee-basis-estimated wallet
// event carrying the cookie.
func (e *SimEngine) EstimateFeeBasis(h ManagerHandle, wh WalletHandle, cookie uint64,
	target string, amount *big.Int, pricePerCostFactor *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return err
	}
	if _, ok := m.wallets[wh]; !ok {
		return ErrSimUnknownWallet
	}

	fee := e.cfg.FeeFunc(amount)
	price := new(big.Int).Set(pricePerCostFactor)
	costFactor := 0.0
	if price.Sign() > 0 {
		f, _ := new(big.Float).Quo(new(big.Float).SetInt(fee), new(big.Float).SetInt(price)).Float64()
		costFactor = f
	}

	e.emit(m, func(cb Callbacks) {
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:   WalletEventFeeBasisEstimated,
			Cookie: cookie,
			FeeBasis: &FeeBasis{
				PricePerCostFactor: price,
				CostFactor:         costFactor,
				Fee:                fee,
			},
		})
	})
	return nil
}

// EstimateLimit answers the first pass of limit estimation from the current
// balance.
func (e *SimEngine) EstimateLimit(h ManagerHandle, wh WalletHandle, asMaximum bool) (LimitEstimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return LimitEstimate{}, err
	}
	w, ok := m.wallets[wh]
	if !ok {
		return LimitEstimate{}, ErrSimUnknownWallet
	}

	amount := new(big.Int).Set(w.balance)
	if !asMaximum {
		amount = new(big.Int).Set(e.cfg.MinimumLimit)
	}
	return LimitEstimate{
		Amount:                    amount,
		NeedFeeEstimate:           e.cfg.NeedFeeEstimate,
		IsZeroIfInsufficientFunds: e.cfg.IsZeroIfInsufficientFunds,
	}, nil
}

func (e *SimEngine) record(kind string, session uint64, err error) {
	e.annMu.Lock()
	defer e.annMu.Unlock()
	e.announcements = append(e.announcements, SimAnnouncement{Kind: kind, Session: session, Err: err})
}

// Announcements returns every Announce* call received so far.
func (e *SimEngine) Announcements() []SimAnnouncement {
	e.annMu.Lock()
	defer e.annMu.Unlock()
	out := make([]SimAnnouncement, len(e.announcements))
	copy(out, e.announcements)
	return out
}

func (e *SimEngine) AnnounceBlockNumber(session uint64, height uint64, err error) {
	e.record("blockNumber", session, err)
}

func (e *SimEngine) AnnounceTransactions(session uint64, txs []TransactionBlob, err error) {
	e.record("transactions", session, err)
}

func (e *SimEngine) AnnounceBalance(session uint64, balance *big.Int, err error) {
	e.record("balance", session, err)
}

func (e *SimEngine) AnnounceSubmit(session uint64, txID string, err error) {
	e.record("submit", session, err)
}

func (e *SimEngine) AnnounceNonce(session uint64, address string, nonce uint64, err error) {
	e.record("nonce", session, err)
}

func (e *SimEngine) AnnounceGasPrice(session uint64, price *big.Int, err error) {
	e.record("gasPrice", session, err)
}

func (e *SimEngine) AnnounceGasEstimate(session uint64, gas *big.Int, err error) {
	e.record("gasEstimate", session, err)
}

func (e *SimEngine) AnnounceLogs(session uint64, logs []LogBlob, err error) {
	e.record("logs", session, err)
}

func (e *SimEngine) AnnounceBlocks(session uint64, blocks []uint64, err error) {
	e.record("blocks", session, err)
}

func (e *SimEngine) AnnounceTokens(session uint64, tokens []TokenBlob, err error) {
	e.record("tokens", session, err)
}

// Test/demo helpers below. A real engine discovers these on-chain; the sim
// lets callers inject them.

// SetBalance sets a wallet balance and reports it as a balance update.
func (e *SimEngine) SetBalance(h ManagerHandle, wh WalletHandle, balance *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return err
	}
	w, ok := m.wallets[wh]
	if !ok {
		return ErrSimUnknownWallet
	}
	w.balance = new(big.Int).Set(balance)

	reported := new(big.Int).Set(balance)
	e.emit(m, func(cb Callbacks) {
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:    WalletEventBalanceUpdated,
			Balance: reported,
		})
	})
	return nil
}

// ReportIncomingTransfer injects a discovered transfer (receive path).
func (e *SimEngine) ReportIncomingTransfer(h ManagerHandle, wh WalletHandle,
	source string, amount *big.Int) (TransferHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.manager(h)
	if err != nil {
		return 0, err
	}
	w, ok := m.wallets[wh]
	if !ok {
		return 0, ErrSimUnknownWallet
	}

	th := TransferHandle(e.nextHandle())
	tr := &simTransfer{
		desc: TransferDescriptor{
			CurrencyUID: w.currencyUID,
			Amount:      new(big.Int).Set(amount),
			Direction:   TransferReceived,
			Source:      source,
			Target:      w.address,
			Hash:        fmt.Sprintf("sim-tx-%d", th),
		},
		state: TransferState{Kind: TransferStateCreated},
	}
	w.transfers[th] = tr

	e.emit(m, func(cb Callbacks) {
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:     WalletEventTransferAdded,
			Transfer: th,
		})
		cb.TransferEvent(cb.System, h, wh, th, TransferEvent{Kind: TransferEventCreated})
	})

	e.setTransferState(h, m, wh, th, tr, TransferState{Kind: TransferStateSubmitted})
	e.setTransferState(h, m, wh, th, tr, TransferState{
		Kind: TransferStateIncluded,
		Confirmation: &Confirmation{
			BlockNumber: e.cfg.BlockHeight,
			Timestamp:   uint64(time.Now().Unix()),
			Success:     true,
		},
	})

	w.balance.Add(w.balance, amount)
	balance := new(big.Int).Set(w.balance)
	e.emit(m, func(cb Callbacks) {
		cb.WalletEvent(cb.System, h, wh, WalletEvent{
			Kind:    WalletEventBalanceUpdated,
			Balance: balance,
		})
	})
	return th, nil
}

// RequestBlockNumber makes the engine ask the client for the block height,
// as a real engine does in API sync mode.
func (e *SimEngine) RequestBlockNumber(h ManagerHandle) uint64 {
	e.mu.Lock()
	cl := e.cl
	system := e.cb.System
	e.mu.Unlock()

	session := e.session.Add(1)
	if cl.GetBlockNumber != nil {
		go cl.GetBlockNumber(ClientContext{Session: session, System: system, Manager: h})
	}
	return session
}
