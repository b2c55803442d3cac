package wallet

import (
	"fmt"
	"sync"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/coordinator"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/event"
	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/pkg/logging"
)

// Manager is the active object for one network and account: it owns the
// network's wallets, a connection state machine, and a serialization queue
// on which all of its engine callbacks are applied one at a time.
//
// Connect/disconnect/sync are commands forwarded to the engine; the
// engine's callbacks are the sole authority that advances the state.
type Manager struct {
	native    ledger.ManagerHandle
	network   *chain.Network
	account   *chain.Account
	engine    ledger.Engine
	announcer Announcer
	queue     *event.Queue // per-manager callback serialization

	feeCoordinator  *coordinator.Coordinator[*TransferFeeBasis]
	completionQueue *event.Queue // fixed queue for estimation completions
	log             *logging.Logger

	mu          sync.RWMutex
	mode        chain.SyncMode
	scheme      chain.AddressScheme
	state       ManagerState
	reachable   bool
	wallets     []*Wallet // primary wallet first
	walletIndex map[ledger.WalletHandle]*Wallet
}

// ManagerConfig carries the parameters for creating a manager.
type ManagerConfig struct {
	Network     *chain.Network
	Account     *chain.Account
	Mode        chain.SyncMode
	Scheme      chain.AddressScheme
	StoragePath string
}

// NewManager creates a manager and its primary wallet for the network's
// native currency. The requested mode and scheme must be in the network's
// supported sets; an unsupported value fails fast rather than being
// substituted.
func NewManager(engine ledger.Engine, announcer Announcer,
	feeCoordinator *coordinator.Coordinator[*TransferFeeBasis],
	completionQueue *event.Queue, cfg ManagerConfig, log *logging.Logger) (*Manager, error) {

	if !cfg.Network.SupportsMode(cfg.Mode) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedMode, cfg.Mode, cfg.Network.UID())
	}
	if !cfg.Network.SupportsScheme(cfg.Scheme) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedScheme, cfg.Scheme, cfg.Network.UID())
	}

	native, err := engine.CreateManager(ledger.ManagerConfig{
		NetworkUID:       cfg.Network.UID(),
		AccountUID:       cfg.Account.UID(),
		AccountTimestamp: cfg.Account.Timestamp(),
		Mode:             string(cfg.Mode),
		AddressScheme:    string(cfg.Scheme),
		StoragePath:      cfg.StoragePath,
	})
	if err != nil {
		return nil, fmt.Errorf("create manager: %w", err)
	}

	m := &Manager{
		native:          native,
		network:         cfg.Network,
		account:         cfg.Account,
		engine:          engine,
		announcer:       announcer,
		queue:           event.NewQueue(),
		feeCoordinator:  feeCoordinator,
		completionQueue: completionQueue,
		log:             log.Component("manager").With("network", cfg.Network.UID()),
		mode:            cfg.Mode,
		scheme:          cfg.Scheme,
		state:           ManagerState{Kind: ManagerCreated},
		reachable:       true,
		walletIndex:     make(map[ledger.WalletHandle]*Wallet),
	}

	// Every manager carries a primary wallet for the native currency.
	if _, err := m.RegisterWallet(cfg.Network.NativeCurrency()); err != nil {
		engine.ReleaseManager(native)
		m.queue.Close()
		return nil, err
	}
	return m, nil
}

// Handle returns the native engine handle.
func (m *Manager) Handle() ledger.ManagerHandle { return m.native }

// Network returns the manager's network.
func (m *Manager) Network() *chain.Network { return m.network }

// Account returns the manager's account.
func (m *Manager) Account() *chain.Account { return m.account }

// Queue returns the manager's serialization queue. All raw engine events
// for this manager must be applied through it.
func (m *Manager) Queue() *event.Queue { return m.queue }

// State returns the connection state.
func (m *Manager) State() ManagerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Mode returns the sync mode.
func (m *Manager) Mode() chain.SyncMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetMode changes the sync mode; the new mode must be supported by the
// network.
func (m *Manager) SetMode(mode chain.SyncMode) error {
	if !m.network.SupportsMode(mode) {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedMode, mode, m.network.UID())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
	return nil
}

// AddressScheme returns the address scheme.
func (m *Manager) AddressScheme() chain.AddressScheme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scheme
}

// NetworkReachable returns the advisory reachability flag.
func (m *Manager) NetworkReachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reachable
}

// SetNetworkReachable records the advisory flag and forwards it to the
// engine. It never connects or disconnects by itself.
func (m *Manager) SetNetworkReachable(reachable bool) {
	m.mu.Lock()
	m.reachable = reachable
	m.mu.Unlock()
	if err := m.engine.SetNetworkReachable(m.native, reachable); err != nil {
		m.log.Warn("setNetworkReachable rejected", "err", err)
	}
}

// Connect asks the engine to connect, optionally to a specific peer.
func (m *Manager) Connect(peer string) error {
	return m.engine.Connect(m.native, peer)
}

// Disconnect asks the engine to disconnect.
func (m *Manager) Disconnect() error {
	return m.engine.Disconnect(m.native)
}

// Sync asks the engine for a full sync cycle.
func (m *Manager) Sync() error {
	return m.engine.Sync(m.native)
}

// SyncToDepth asks the engine to re-sync from the given depth.
func (m *Manager) SyncToDepth(depth ledger.SyncDepth) error {
	return m.engine.SyncToDepth(m.native, depth)
}

// Wallets returns the manager's wallets, primary first.
func (m *Manager) Wallets() []*Wallet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Wallet, len(m.wallets))
	copy(out, m.wallets)
	return out
}

// PrimaryWallet returns the wallet for the network's native currency.
func (m *Manager) PrimaryWallet() *Wallet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wallets[0]
}

// WalletForCurrency finds the wallet holding cur, if any.
func (m *Manager) WalletForCurrency(cur *currency.Currency) (*Wallet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.wallets {
		if w.cur.Equal(cur) {
			return w, true
		}
	}
	return nil, false
}

// RegisterWallet creates (or returns) the wallet for a currency supported
// by the network.
func (m *Manager) RegisterWallet(cur *currency.Currency) (*Wallet, error) {
	if !m.network.HasCurrency(cur) {
		return nil, fmt.Errorf("%w: %s on %s", ErrCurrencyNotSupported, cur.Code(), m.network.UID())
	}
	if w, ok := m.WalletForCurrency(cur); ok {
		return w, nil
	}

	native, err := m.engine.RegisterWallet(m.native, cur.UID())
	if err != nil {
		return nil, fmt.Errorf("register wallet: %w", err)
	}
	return m.walletForHandle(native)
}

// SubmitTransfer signs and submits a created transfer with the account's
// paper key. The resulting signed/submitted/included transitions arrive
// through engine callbacks.
func (m *Manager) SubmitTransfer(t *Transfer, paperKey string) error {
	return m.engine.SubmitTransfer(m.native, t.wallet.native, t.native, paperKey)
}

// Release tears the manager down: the engine forgets the native handle and
// the serialization queue discards whatever it still holds.
func (m *Manager) Release() {
	m.engine.ReleaseManager(m.native)
	m.queue.Close()
}

// feeUnit returns the unit fees are denominated in on this network.
func (m *Manager) feeUnit() *currency.Unit {
	unit, _ := m.network.BaseUnitFor(m.network.NativeCurrency())
	return unit
}

// walletForHandle resolves a native wallet handle, constructing the
// counterpart on first sight so exactly one live object exists per handle.
func (m *Manager) walletForHandle(h ledger.WalletHandle) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.walletIndex[h]; ok {
		return w, nil
	}

	desc, err := m.engine.DescribeWallet(m.native, h)
	if err != nil {
		return nil, err
	}
	w, err := newWallet(m, h, desc)
	if err != nil {
		return nil, err
	}
	m.walletIndex[h] = w
	m.wallets = append(m.wallets, w)
	return w, nil
}

// ApplyManagerEvent translates one raw manager event. It must run on the
// manager's serialization queue.
func (m *Manager) ApplyManagerEvent(raw ledger.ManagerEvent) {
	switch raw.Kind {
	case ledger.ManagerEventCreated:
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{Kind: ManagerEventCreated})

	case ledger.ManagerEventChanged:
		old := managerStateFromRaw(raw.OldState, nil)
		next := managerStateFromRaw(raw.NewState, raw.Reason)
		m.mu.Lock()
		m.state = next
		m.mu.Unlock()
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{
			Kind: ManagerEventChanged, Old: old, New: next,
		})

	case ledger.ManagerEventDeleted:
		m.mu.Lock()
		m.state = ManagerState{Kind: ManagerDeleted}
		m.mu.Unlock()
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{Kind: ManagerEventDeleted})

	case ledger.ManagerEventWalletAdded, ledger.ManagerEventWalletChanged,
		ledger.ManagerEventWalletDeleted:
		w, err := m.walletForHandle(raw.Wallet)
		if err != nil {
			m.log.Debug("dropping wallet membership event", "wallet", raw.Wallet, "err", err)
			return
		}
		kind := ManagerEventWalletAdded
		switch raw.Kind {
		case ledger.ManagerEventWalletChanged:
			kind = ManagerEventWalletChanged
		case ledger.ManagerEventWalletDeleted:
			kind = ManagerEventWalletDeleted
		}
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{Kind: kind, Wallet: w})

	case ledger.ManagerEventSyncStarted:
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{Kind: ManagerEventSyncStarted})

	case ledger.ManagerEventSyncContinues:
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{
			Kind:          ManagerEventSyncProgress,
			SyncPercent:   raw.SyncPercent,
			SyncTimestamp: raw.SyncTimestamp,
		})

	case ledger.ManagerEventSyncStopped:
		var reason *SyncStoppedReason
		if raw.SyncReason != nil {
			reason = &SyncStoppedReason{
				Kind:    raw.SyncReason.Kind,
				Errno:   raw.SyncReason.Errno,
				Message: raw.SyncReason.Message,
			}
		}
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{
			Kind: ManagerEventSyncEnded, SyncReason: reason,
		})

	case ledger.ManagerEventSyncRecommended:
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{
			Kind: ManagerEventSyncRecommended, SyncDepth: raw.SyncDepth,
		})

	case ledger.ManagerEventBlockHeightUpdated:
		m.network.SetHeight(raw.Height)
		m.announcer.AnnounceManagerEvent(m, ManagerEvent{
			Kind: ManagerEventBlockUpdated, Height: raw.Height,
		})
	}
}

// ApplyWalletEvent translates one raw wallet event. It must run on the
// manager's serialization queue.
func (m *Manager) ApplyWalletEvent(wh ledger.WalletHandle, raw ledger.WalletEvent) {
	// Fee estimation completions resolve a cookie, not a listener event.
	if raw.Kind == ledger.WalletEventFeeBasisEstimated {
		m.resolveFeeEstimate(raw)
		return
	}

	w, err := m.walletForHandle(wh)
	if err != nil {
		m.log.Debug("dropping wallet event", "wallet", wh, "err", err)
		return
	}

	switch raw.Kind {
	case ledger.WalletEventCreated:
		m.announcer.AnnounceWalletEvent(m, w, WalletEvent{Kind: WalletEventCreated})

	case ledger.WalletEventDeleted:
		m.announcer.AnnounceWalletEvent(m, w, WalletEvent{Kind: WalletEventDeleted})

	case ledger.WalletEventTransferAdded, ledger.WalletEventTransferChanged,
		ledger.WalletEventTransferSubmitted, ledger.WalletEventTransferDeleted:
		t, err := w.transferForHandle(raw.Transfer)
		if err != nil {
			m.log.Debug("dropping transfer membership event", "transfer", raw.Transfer, "err", err)
			return
		}
		kind := WalletEventTransferAdded
		switch raw.Kind {
		case ledger.WalletEventTransferChanged:
			kind = WalletEventTransferChanged
		case ledger.WalletEventTransferSubmitted:
			kind = WalletEventTransferSubmitted
		case ledger.WalletEventTransferDeleted:
			kind = WalletEventTransferDeleted
		}
		m.announcer.AnnounceWalletEvent(m, w, WalletEvent{Kind: kind, Transfer: t})

	case ledger.WalletEventBalanceUpdated:
		balance := currency.NewAmountFromBase(raw.Balance, w.unit)
		w.setBalance(balance)
		m.announcer.AnnounceWalletEvent(m, w, WalletEvent{
			Kind: WalletEventBalanceUpdated, Balance: balance,
		})

	case ledger.WalletEventFeeBasisUpdated:
		m.announcer.AnnounceWalletEvent(m, w, WalletEvent{
			Kind:     WalletEventFeeBasisUpdated,
			FeeBasis: feeBasisFromRaw(raw.FeeBasis, m.feeUnit()),
		})
	}
}

func (m *Manager) resolveFeeEstimate(raw ledger.WalletEvent) {
	cookie := coordinator.Cookie(raw.Cookie)
	if raw.EstimateErr != nil {
		m.feeCoordinator.Resolve(cookie, nil, ErrServiceError)
		return
	}
	m.feeCoordinator.Resolve(cookie, feeBasisFromRaw(raw.FeeBasis, m.feeUnit()), nil)
}

// ApplyTransferEvent translates one raw transfer event. It must run on the
// manager's serialization queue.
func (m *Manager) ApplyTransferEvent(wh ledger.WalletHandle, th ledger.TransferHandle,
	raw ledger.TransferEvent) {
	w, err := m.walletForHandle(wh)
	if err != nil {
		m.log.Debug("dropping transfer event", "wallet", wh, "err", err)
		return
	}
	t, err := w.transferForHandle(th)
	if err != nil {
		m.log.Debug("dropping transfer event", "transfer", th, "err", err)
		return
	}

	switch raw.Kind {
	case ledger.TransferEventCreated:
		m.announcer.AnnounceTransferEvent(m, w, t, TransferEvent{Kind: TransferEventCreated})

	case ledger.TransferEventChanged:
		next := transferStateFromRaw(raw.NewState, m.feeUnit())
		if next.Kind == TransferSigned || next.Kind == TransferSubmitted {
			if desc, err := m.engine.DescribeTransfer(m.native, th); err == nil && desc.Hash != "" {
				t.setHash(desc.Hash)
			}
		}
		old := t.setState(next)
		m.announcer.AnnounceTransferEvent(m, w, t, TransferEvent{
			Kind: TransferEventChanged, Old: old, New: next,
		})

	case ledger.TransferEventDeleted:
		t.setState(TransferState{Kind: TransferDeleted})
		m.announcer.AnnounceTransferEvent(m, w, t, TransferEvent{Kind: TransferEventDeleted})
	}
}
