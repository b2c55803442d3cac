// Package system implements the top-level aggregate of the wallet core: it
// owns the networks and wallet managers for one account, bridges the ledger
// engine's raw callbacks onto per-manager serialization queues, and delivers
// cooked events to the application listener in order.
package system

import (
	"errors"
	"fmt"
	"sync"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/coordinator"
	"github.com/coinharbor/walletcore/internal/event"
	"github.com/coinharbor/walletcore/internal/handle"
	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/internal/query"
	"github.com/coinharbor/walletcore/internal/storage"
	"github.com/coinharbor/walletcore/internal/wallet"
	"github.com/coinharbor/walletcore/pkg/logging"
)

// System errors.
var (
	ErrDestroyed      = errors.New("system destroyed")
	ErrUnknownNetwork = errors.New("unknown network")
	ErrNoQueryService = errors.New("no query service configured")
)

// Registry maps live system handles to systems. The engine's callbacks
// carry only the handle; a callback whose handle no longer resolves belongs
// to a destroyed system and is dropped.
type Registry = handle.Registry[*System]

// NewRegistry creates a system registry. One per process is typical.
func NewRegistry() *Registry { return handle.NewRegistry[*System]() }

// Config carries the parameters for creating a system.
type Config struct {
	Account     *chain.Account
	StoragePath string

	// Listener receives events from creation on. It can be swapped later
	// with SetListener.
	Listener Listener

	// Query is the blockchain query service client; nil disables network
	// discovery, fee refresh and subscriptions.
	Query *query.Client
	// Store persists blocks, peers and transactions for the engine; nil
	// disables persistence.
	Store *storage.Storage
}

// System is the root object for one account: its networks, wallet managers
// and the listener event feed.
type System struct {
	handle   handle.Handle
	registry *Registry
	engine   ledger.Engine
	account  *chain.Account
	queryc   *query.Client
	store    *storage.Storage
	cfg      Config
	log      *logging.Logger

	// deliveryQueue serializes every listener invocation and estimation
	// completion system-wide.
	deliveryQueue  *event.Queue
	feeCoordinator *coordinator.Coordinator[*wallet.TransferFeeBasis]

	listenerMu sync.RWMutex
	listener   Listener

	mu           sync.RWMutex
	destroyed    bool
	networks     []*chain.Network
	networkIndex map[string]*chain.Network
	managers     []*wallet.Manager
	managerIndex map[ledger.ManagerHandle]*wallet.Manager
}

// New creates a system on the given engine and registers it. The engine's
// callbacks and client are pointed at the new system.
func New(registry *Registry, engine ledger.Engine, cfg Config) (*System, error) {
	if cfg.Account == nil {
		return nil, errors.New("system: account required")
	}

	deliveryQueue := event.NewQueue()
	s := &System{
		registry:       registry,
		engine:         engine,
		account:        cfg.Account,
		queryc:         cfg.Query,
		store:          cfg.Store,
		cfg:            cfg,
		log:            logging.GetDefault().Component("system"),
		deliveryQueue:  deliveryQueue,
		feeCoordinator: coordinator.New[*wallet.TransferFeeBasis](deliveryQueue),
		networkIndex:   make(map[string]*chain.Network),
		managerIndex:   make(map[ledger.ManagerHandle]*wallet.Manager),
	}
	s.listener = cfg.Listener
	s.handle = registry.Register(s)

	engine.SetCallbacks(callbacksFor(registry, s.handle))
	engine.SetClient(s.client())

	s.announceSystemEvent(SystemEvent{Kind: SystemEventCreated})
	return s, nil
}

// Handle returns the system's registry handle.
func (s *System) Handle() handle.Handle { return s.handle }

// Account returns the system's account.
func (s *System) Account() *chain.Account { return s.account }

// SetListener installs the event listener. A nil listener silently drops
// all events; events announced while no listener is installed are lost, not
// queued.
func (s *System) SetListener(l Listener) {
	s.listenerMu.Lock()
	s.listener = l
	s.listenerMu.Unlock()
}

func (s *System) currentListener() Listener {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return s.listener
}

// AddNetwork registers a network with the system. Adding the same uid twice
// returns the existing network.
func (s *System) AddNetwork(n *chain.Network) *chain.Network {
	s.mu.Lock()
	if existing, ok := s.networkIndex[n.UID()]; ok {
		s.mu.Unlock()
		return existing
	}
	s.networkIndex[n.UID()] = n
	s.networks = append(s.networks, n)
	s.mu.Unlock()

	s.announceSystemEvent(SystemEvent{Kind: SystemEventNetworkAdded, Network: n})
	s.announceNetworkEvent(NetworkEvent{Kind: NetworkEventCreated, Network: n})
	return n
}

// Networks returns the registered networks.
func (s *System) Networks() []*chain.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*chain.Network, len(s.networks))
	copy(out, s.networks)
	return out
}

// NetworkByUID finds a registered network.
func (s *System) NetworkByUID(uid string) (*chain.Network, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.networkIndex[uid]
	return n, ok
}

// Managers returns the system's wallet managers.
func (s *System) Managers() []*wallet.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*wallet.Manager, len(s.managers))
	copy(out, s.managers)
	return out
}

// ManagerForNetwork finds the manager on a network, if any.
func (s *System) ManagerForNetwork(n *chain.Network) (*wallet.Manager, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.managers {
		if m.Network() == n {
			return m, true
		}
	}
	return nil, false
}

// CreateWalletManager creates the manager for a network. The network must
// be registered and the mode and scheme supported by it.
func (s *System) CreateWalletManager(n *chain.Network, mode chain.SyncMode,
	scheme chain.AddressScheme) (*wallet.Manager, error) {

	s.mu.RLock()
	destroyed := s.destroyed
	_, known := s.networkIndex[n.UID()]
	s.mu.RUnlock()
	if destroyed {
		return nil, ErrDestroyed
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, n.UID())
	}
	if m, ok := s.ManagerForNetwork(n); ok {
		return m, nil
	}

	m, err := wallet.NewManager(s.engine, s, s.feeCoordinator, s.deliveryQueue, wallet.ManagerConfig{
		Network:     n,
		Account:     s.account,
		Mode:        mode,
		Scheme:      scheme,
		StoragePath: s.cfg.StoragePath,
	}, logging.GetDefault())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.managers = append(s.managers, m)
	s.managerIndex[m.Handle()] = m
	s.mu.Unlock()

	s.announceSystemEvent(SystemEvent{Kind: SystemEventManagerAdded, Manager: m})
	return m, nil
}

func (s *System) managerFor(h ledger.ManagerHandle) (*wallet.Manager, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.managerIndex[h]
	return m, ok
}

// ConnectAll connects every manager.
func (s *System) ConnectAll() {
	for _, m := range s.Managers() {
		if err := m.Connect(""); err != nil {
			s.log.Warn("connect failed", "network", m.Network().UID(), "err", err)
		}
	}
}

// DisconnectAll disconnects every manager.
func (s *System) DisconnectAll() {
	for _, m := range s.Managers() {
		if err := m.Disconnect(); err != nil {
			s.log.Warn("disconnect failed", "network", m.Network().UID(), "err", err)
		}
	}
}

// SetNetworkReachable forwards the advisory reachability flag to every
// manager.
func (s *System) SetNetworkReachable(reachable bool) {
	for _, m := range s.Managers() {
		m.SetNetworkReachable(reachable)
	}
}

// Destroy tears the system down: the registry entry goes first, so engine
// callbacks racing the teardown resolve to nothing, then every manager is
// disconnected and released. After Destroy the listener receives nothing.
func (s *System) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	managers := s.managers
	s.managers = nil
	s.managerIndex = make(map[ledger.ManagerHandle]*wallet.Manager)
	s.mu.Unlock()

	s.registry.Remove(s.handle)

	for _, m := range managers {
		if err := m.Disconnect(); err != nil {
			s.log.Debug("disconnect during destroy", "network", m.Network().UID(), "err", err)
		}
		m.Release()
	}

	// Deliver the farewell, drain what was announced before the teardown,
	// then stop the queue for good.
	s.announceSystemEvent(SystemEvent{Kind: SystemEventDeleted})
	drained := make(chan struct{})
	s.deliveryQueue.Enqueue(func() { close(drained) })
	go func() {
		<-drained
		s.SetListener(nil)
		s.deliveryQueue.Close()
	}()
}

// announceSystemEvent delivers a system event on the delivery queue.
func (s *System) announceSystemEvent(ev SystemEvent) {
	s.deliveryQueue.Enqueue(func() {
		if l := s.currentListener(); l != nil {
			l.HandleSystemEvent(s, ev)
		}
	})
}

func (s *System) announceNetworkEvent(ev NetworkEvent) {
	s.deliveryQueue.Enqueue(func() {
		if l := s.currentListener(); l != nil {
			l.HandleNetworkEvent(s, ev)
		}
	})
}

// AnnounceManagerEvent implements wallet.Announcer.
func (s *System) AnnounceManagerEvent(m *wallet.Manager, ev wallet.ManagerEvent) {
	s.deliveryQueue.Enqueue(func() {
		if l := s.currentListener(); l != nil {
			l.HandleManagerEvent(s, m, ev)
		}
	})
}

// AnnounceWalletEvent implements wallet.Announcer.
func (s *System) AnnounceWalletEvent(m *wallet.Manager, w *wallet.Wallet, ev wallet.WalletEvent) {
	s.deliveryQueue.Enqueue(func() {
		if l := s.currentListener(); l != nil {
			l.HandleWalletEvent(s, m, w, ev)
		}
	})
}

// AnnounceTransferEvent implements wallet.Announcer.
func (s *System) AnnounceTransferEvent(m *wallet.Manager, w *wallet.Wallet,
	t *wallet.Transfer, ev wallet.TransferEvent) {
	s.deliveryQueue.Enqueue(func() {
		if l := s.currentListener(); l != nil {
			l.HandleTransferEvent(s, m, w, t, ev)
		}
	})
}

// callbacksFor builds the engine callback sink for one system handle. Each
// callback re-resolves the handle; a miss means the system was destroyed
// and the event belongs to no one.
func callbacksFor(registry *Registry, h handle.Handle) ledger.Callbacks {
	resolve := func(system uint64, mgr ledger.ManagerHandle) (*System, *wallet.Manager, bool) {
		s, ok := registry.Resolve(handle.Handle(system))
		if !ok {
			return nil, nil, false
		}
		m, ok := s.managerFor(mgr)
		if !ok {
			return nil, nil, false
		}
		return s, m, true
	}

	return ledger.Callbacks{
		System: uint64(h),

		ManagerEvent: func(system uint64, mgr ledger.ManagerHandle, ev ledger.ManagerEvent) {
			if _, m, ok := resolve(system, mgr); ok {
				m.Queue().Enqueue(func() { m.ApplyManagerEvent(ev) })
			}
		},
		WalletEvent: func(system uint64, mgr ledger.ManagerHandle, w ledger.WalletHandle, ev ledger.WalletEvent) {
			if _, m, ok := resolve(system, mgr); ok {
				m.Queue().Enqueue(func() { m.ApplyWalletEvent(w, ev) })
			}
		},
		TransferEvent: func(system uint64, mgr ledger.ManagerHandle, w ledger.WalletHandle,
			t ledger.TransferHandle, ev ledger.TransferEvent) {
			if _, m, ok := resolve(system, mgr); ok {
				m.Queue().Enqueue(func() { m.ApplyTransferEvent(w, t, ev) })
			}
		},

		SaveBlock: func(system uint64, mgr ledger.ManagerHandle, height uint64, data []byte) {
			if s, m, ok := resolve(system, mgr); ok {
				s.saveBlock(m, height, data)
			}
		},
		SavePeer: func(system uint64, mgr ledger.ManagerHandle, address string, data []byte) {
			if s, m, ok := resolve(system, mgr); ok {
				s.savePeer(m, address, data)
			}
		},
		ChangeTransaction: func(system uint64, mgr ledger.ManagerHandle, change ledger.TransactionChange) {
			if s, m, ok := resolve(system, mgr); ok {
				s.changeTransaction(m, change)
			}
		},
	}
}

func (s *System) saveBlock(m *wallet.Manager, height uint64, data []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveBlock(m.Network().UID(), height, data); err != nil {
		s.log.Warn("save block failed", "network", m.Network().UID(), "err", err)
	}
}

func (s *System) savePeer(m *wallet.Manager, address string, data []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.SavePeer(m.Network().UID(), address, data); err != nil {
		s.log.Warn("save peer failed", "network", m.Network().UID(), "err", err)
	}
}

func (s *System) changeTransaction(m *wallet.Manager, change ledger.TransactionChange) {
	if s.store == nil {
		return
	}
	uid := m.Network().UID()
	var err error
	switch change.Op {
	case ledger.TransactionAdded, ledger.TransactionUpdated:
		err = s.store.SaveTransaction(uid, change.TxID, change.Raw)
	case ledger.TransactionDeleted:
		err = s.store.DeleteTransaction(uid, change.TxID)
	}
	if err != nil {
		s.log.Warn("transaction change failed", "network", uid, "txid", change.TxID, "err", err)
	}
}
