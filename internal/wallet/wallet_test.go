package wallet

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/coordinator"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/event"
	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/pkg/logging"
)

// recordingAnnouncer captures cooked events for inspection.
type recordingAnnouncer struct {
	mu             sync.Mutex
	managerEvents  []ManagerEvent
	walletEvents   []WalletEvent
	transferEvents []TransferEvent
}

func (r *recordingAnnouncer) AnnounceManagerEvent(m *Manager, ev ManagerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managerEvents = append(r.managerEvents, ev)
}

func (r *recordingAnnouncer) AnnounceWalletEvent(m *Manager, w *Wallet, ev WalletEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.walletEvents = append(r.walletEvents, ev)
}

func (r *recordingAnnouncer) AnnounceTransferEvent(m *Manager, w *Wallet, t *Transfer, ev TransferEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferEvents = append(r.transferEvents, ev)
}

func (r *recordingAnnouncer) managerStateKinds() []ManagerStateKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ManagerStateKind
	for _, ev := range r.managerEvents {
		if ev.Kind == ManagerEventChanged {
			out = append(out, ev.New.Kind)
		}
	}
	return out
}

func (r *recordingAnnouncer) managerEventKinds() []ManagerEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ManagerEventKind, len(r.managerEvents))
	for i, ev := range r.managerEvents {
		out[i] = ev.Kind
	}
	return out
}

func (r *recordingAnnouncer) transferStateKinds() []TransferStateKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TransferStateKind
	for _, ev := range r.transferEvents {
		if ev.Kind == TransferEventChanged {
			out = append(out, ev.New.Kind)
		}
	}
	return out
}

// testEnv wires a manager to a sim engine the way the system layer does:
// every raw callback is enqueued on the manager's serialization queue.
type testEnv struct {
	engine    *ledger.SimEngine
	manager   *Manager
	announcer *recordingAnnouncer
}

func newTestEnv(t *testing.T, simCfg ledger.SimConfig) *testEnv {
	t.Helper()
	return newTestEnvOn(t, simCfg, chain.BitcoinMainnet(),
		chain.SyncModeAPIOnly, chain.AddressSchemeBTCSegwit)
}

func newTestEnvOn(t *testing.T, simCfg ledger.SimConfig, network *chain.Network,
	mode chain.SyncMode, scheme chain.AddressScheme) *testEnv {
	t.Helper()

	env := &testEnv{
		engine:    ledger.NewSimEngine(simCfg),
		announcer: &recordingAnnouncer{},
	}

	completionQueue := event.NewQueue()
	feeCoordinator := coordinator.New[*TransferFeeBasis](completionQueue)

	// Callbacks may fire before NewManager returns; hold them until the
	// manager pointer is set.
	ready := make(chan struct{})
	env.engine.SetCallbacks(ledger.Callbacks{
		System: 1,
		ManagerEvent: func(system uint64, mh ledger.ManagerHandle, ev ledger.ManagerEvent) {
			<-ready
			env.manager.Queue().Enqueue(func() { env.manager.ApplyManagerEvent(ev) })
		},
		WalletEvent: func(system uint64, mh ledger.ManagerHandle, wh ledger.WalletHandle, ev ledger.WalletEvent) {
			<-ready
			env.manager.Queue().Enqueue(func() { env.manager.ApplyWalletEvent(wh, ev) })
		},
		TransferEvent: func(system uint64, mh ledger.ManagerHandle, wh ledger.WalletHandle,
			th ledger.TransferHandle, ev ledger.TransferEvent) {
			<-ready
			env.manager.Queue().Enqueue(func() { env.manager.ApplyTransferEvent(wh, th, ev) })
		},
	})

	m, err := NewManager(env.engine, env.announcer, feeCoordinator, completionQueue, ManagerConfig{
		Network: network,
		Account: chain.NewAccount(time.Now()),
		Mode:    mode,
		Scheme:  scheme,
	}, logging.Default())
	if err != nil {
		close(ready)
		completionQueue.Close()
		t.Fatalf("NewManager: %v", err)
	}
	env.manager = m
	close(ready)

	t.Cleanup(func() {
		m.Release()
		completionQueue.Close()
	})
	return env
}

// setBalance injects a balance and waits until the wallet has applied it.
func (env *testEnv) setBalance(t *testing.T, w *Wallet, base int64) {
	t.Helper()
	if err := env.engine.SetBalance(env.manager.Handle(), w.native, big.NewInt(base)); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	want := currency.NewAmountFromBase(big.NewInt(base), w.Unit())
	waitUntil(t, func() bool { return w.Balance().Eq(want) }, "balance update")
}

func waitUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// isSubsequence reports whether seen occurs, in order, within allowed.
func isSubsequence(seen, allowed []TransferStateKind) bool {
	i := 0
	for _, s := range seen {
		for i < len(allowed) && allowed[i] != s {
			i++
		}
		if i == len(allowed) {
			return false
		}
	}
	return true
}
