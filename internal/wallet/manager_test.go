package wallet

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/coordinator"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/event"
	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/pkg/logging"
)

func TestNewManagerRejectsUnsupportedMode(t *testing.T) {
	engine := ledger.NewSimEngine(ledger.SimConfig{})
	queue := event.NewQueue()
	defer queue.Close()

	_, err := NewManager(engine, &recordingAnnouncer{},
		coordinator.New[*TransferFeeBasis](queue), queue, ManagerConfig{
			Network: chain.BitcoinMainnet(),
			Account: chain.NewAccount(time.Now()),
			Mode:    chain.SyncModeP2PWithAPISync,
			Scheme:  chain.AddressSchemeBTCSegwit,
		}, logging.Default())
	if !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("got %v, want ErrUnsupportedMode", err)
	}
}

func TestNewManagerRejectsUnsupportedScheme(t *testing.T) {
	engine := ledger.NewSimEngine(ledger.SimConfig{})
	queue := event.NewQueue()
	defer queue.Close()

	_, err := NewManager(engine, &recordingAnnouncer{},
		coordinator.New[*TransferFeeBasis](queue), queue, ManagerConfig{
			Network: chain.EthereumMainnet(),
			Account: chain.NewAccount(time.Now()),
			Mode:    chain.SyncModeAPIOnly,
			Scheme:  chain.AddressSchemeBTCLegacy,
		}, logging.Default())
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("got %v, want ErrUnsupportedScheme", err)
	}
}

func TestNewManagerCreatesPrimaryWallet(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{})
	m := env.manager

	w := m.PrimaryWallet()
	if w == nil {
		t.Fatal("no primary wallet")
	}
	if !w.Currency().Equal(m.Network().NativeCurrency()) {
		t.Errorf("primary wallet holds %s, want native currency", w.Currency().Code())
	}
	if !w.Balance().IsZero() {
		t.Errorf("fresh wallet balance = %s, want zero", w.Balance())
	}
}

func TestSetModeValidates(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{})
	m := env.manager

	if err := m.SetMode(chain.SyncModeP2POnly); err != nil {
		t.Fatalf("SetMode(p2p_only): %v", err)
	}
	if got := m.Mode(); got != chain.SyncModeP2POnly {
		t.Errorf("Mode() = %s, want p2p_only", got)
	}
	if err := m.SetMode(chain.SyncModeP2PWithAPISync); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("SetMode(unsupported) = %v, want ErrUnsupportedMode", err)
	}
	if got := m.Mode(); got != chain.SyncModeP2POnly {
		t.Errorf("rejected SetMode changed mode to %s", got)
	}
}

func TestRegisterWalletRejectsUnknownCurrency(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{})

	other := currency.NewCurrency("other:xyz", "XYZ", "Other", currency.TypeOther, "")
	if _, err := env.manager.RegisterWallet(other); !errors.Is(err, ErrCurrencyNotSupported) {
		t.Fatalf("got %v, want ErrCurrencyNotSupported", err)
	}
}

func TestRegisterWalletIsIdempotent(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{})
	m := env.manager

	w, err := m.RegisterWallet(m.Network().NativeCurrency())
	if err != nil {
		t.Fatalf("RegisterWallet: %v", err)
	}
	if w != m.PrimaryWallet() {
		t.Error("re-registering the native currency created a second wallet")
	}
	if n := len(m.Wallets()); n != 1 {
		t.Errorf("len(Wallets()) = %d, want 1", n)
	}
}

func TestConnectRunsSyncCycle(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{BlockHeight: 500_000})
	m := env.manager

	if err := m.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitUntil(t, func() bool { return m.State().Kind == ManagerConnected && m.Network().Height() == 500_000 },
		"sync cycle to finish")

	states := env.announcer.managerStateKinds()
	want := []ManagerStateKind{ManagerConnected, ManagerSyncing, ManagerConnected}
	if len(states) != len(want) {
		t.Fatalf("state changes = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state changes = %v, want %v", states, want)
		}
	}

	var sawStart, sawProgress, sawEnd, sawBlock bool
	for _, kind := range env.announcer.managerEventKinds() {
		switch kind {
		case ManagerEventSyncStarted:
			sawStart = true
		case ManagerEventSyncProgress:
			sawProgress = true
		case ManagerEventSyncEnded:
			sawEnd = true
		case ManagerEventBlockUpdated:
			sawBlock = true
		}
	}
	if !sawStart || !sawProgress || !sawEnd || !sawBlock {
		t.Errorf("missing sync events: started=%v progress=%v ended=%v block=%v",
			sawStart, sawProgress, sawEnd, sawBlock)
	}
}

func TestDisconnectReportsRequestedReason(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{})
	m := env.manager

	if err := m.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitUntil(t, func() bool { return m.State().Kind == ManagerConnected }, "connect")

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	waitUntil(t, func() bool { return m.State().Kind == ManagerDisconnected }, "disconnect")

	state := m.State()
	if state.Reason == nil || state.Reason.Kind != ledger.DisconnectRequested {
		t.Errorf("disconnect reason = %+v, want requested", state.Reason)
	}
}

func TestSetNetworkReachableIsAdvisory(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{})
	m := env.manager

	if err := m.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitUntil(t, func() bool { return m.State().Kind == ManagerConnected }, "connect")

	m.SetNetworkReachable(false)
	if m.NetworkReachable() {
		t.Error("NetworkReachable() = true after SetNetworkReachable(false)")
	}
	// The flag never moves the state machine.
	time.Sleep(20 * time.Millisecond)
	if got := m.State().Kind; got != ManagerConnected {
		t.Errorf("state = %s after reachability change, want connected", got)
	}
}

func TestTransferLifecycle(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{BlockHeight: 500_000})
	m := env.manager
	w := m.PrimaryWallet()

	if err := m.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitUntil(t, func() bool { return m.Network().Height() == 500_000 }, "sync")
	env.setBalance(t, w, 100_000_000)

	feeUnit := w.Unit()
	basis := NewTransferFeeBasis(
		currency.NewAmountFromBase(big.NewInt(25), feeUnit), 40,
		currency.NewAmountFromBase(big.NewInt(1000), feeUnit))

	transfer, err := w.CreateTransfer("dest-addr", currency.NewAmountFromBase(big.NewInt(50_000), w.Unit()), basis, nil)
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if got := transfer.State().Kind; got != TransferCreated {
		t.Fatalf("new transfer state = %s, want created", got)
	}
	if _, ok := transfer.Hash(); ok {
		t.Error("unsubmitted transfer has a hash")
	}

	if err := m.SubmitTransfer(transfer, "paper key"); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}
	waitUntil(t, func() bool { return transfer.State().Kind == TransferIncluded }, "inclusion")

	if _, ok := transfer.Hash(); !ok {
		t.Error("included transfer has no hash")
	}

	seen := env.announcer.transferStateKinds()
	allowed := []TransferStateKind{TransferCreated, TransferSigned, TransferSubmitted, TransferIncluded}
	if !isSubsequence(seen, allowed) {
		t.Errorf("observed states %v are not a forward pass through %v", seen, allowed)
	}

	conf := transfer.State().Confirmation
	if conf == nil || !conf.Success {
		t.Fatalf("confirmation = %+v, want success", conf)
	}
	if conf.Fee == nil || conf.Fee.BaseValue().Int64() != 1000 {
		t.Errorf("confirmation fee = %v, want 1000", conf.Fee)
	}

	// Confirmation counting: 1 at the inclusion block, undefined below it.
	if count, ok := transfer.ConfirmationsAt(conf.BlockNumber); !ok || count != 1 {
		t.Errorf("ConfirmationsAt(inclusion) = %d, %v; want 1, true", count, ok)
	}
	if _, ok := transfer.ConfirmationsAt(conf.BlockNumber - 1); ok {
		t.Error("ConfirmationsAt(below inclusion) is defined")
	}

	// The engine settles amount plus fee out of the balance.
	want := currency.NewAmountFromBase(big.NewInt(100_000_000-50_000-1000), w.Unit())
	waitUntil(t, func() bool { return w.Balance().Eq(want) }, "settled balance")
}

func TestFailedSubmitCarriesSubmitError(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{FailSubmits: true})
	m := env.manager
	w := m.PrimaryWallet()

	env.setBalance(t, w, 1_000_000)
	basis := NewTransferFeeBasis(
		currency.NewAmountFromBase(big.NewInt(25), w.Unit()), 40,
		currency.NewAmountFromBase(big.NewInt(1000), w.Unit()))

	transfer, err := w.CreateTransfer("dest-addr", currency.NewAmountFromBase(big.NewInt(10_000), w.Unit()), basis, nil)
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if err := m.SubmitTransfer(transfer, "paper key"); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}
	waitUntil(t, func() bool { return transfer.State().Kind == TransferFailed }, "failure")

	sub := transfer.State().Submit
	if sub == nil {
		t.Fatal("failed transfer has no submit error")
	}
	if sub.Kind != ledger.SubmitErrorPosix || sub.Errno != 110 {
		t.Errorf("submit error = %+v, want posix errno 110", sub)
	}
}

func TestIncomingTransferIsDiscovered(t *testing.T) {
	env := newTestEnv(t, ledger.SimConfig{BlockHeight: 500_000})
	m := env.manager
	w := m.PrimaryWallet()

	if _, err := env.engine.ReportIncomingTransfer(m.Handle(), w.native, "sender-addr", big.NewInt(75_000)); err != nil {
		t.Fatalf("ReportIncomingTransfer: %v", err)
	}
	waitUntil(t, func() bool {
		ts := w.Transfers()
		return len(ts) == 1 && ts[0].State().Kind == TransferIncluded
	}, "incoming transfer")

	transfer := w.Transfers()[0]
	if transfer.Direction() != DirectionReceived {
		t.Errorf("direction = %v, want received", transfer.Direction())
	}
	if transfer.Target() != w.Address() {
		t.Errorf("target = %s, want wallet address %s", transfer.Target(), w.Address())
	}
	if hash, ok := transfer.Hash(); !ok || hash == "" {
		t.Error("discovered transfer has no hash")
	}

	want := currency.NewAmountFromBase(big.NewInt(75_000), w.Unit())
	waitUntil(t, func() bool { return w.Balance().Eq(want) }, "credited balance")

	if got, ok := w.TransferByHash(mustHash(t, transfer)); !ok || got != transfer {
		t.Error("TransferByHash did not find the discovered transfer")
	}
}

func mustHash(t *testing.T, tr *Transfer) string {
	t.Helper()
	hash, ok := tr.Hash()
	if !ok {
		t.Fatal("transfer has no hash")
	}
	return hash
}
