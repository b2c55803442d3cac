package system

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/internal/query"
	"github.com/coinharbor/walletcore/internal/wallet"
)

// recordingListener captures every delivered event.
type recordingListener struct {
	mu             sync.Mutex
	systemEvents   []SystemEvent
	networkEvents  []NetworkEvent
	managerEvents  []wallet.ManagerEvent
	walletEvents   []wallet.WalletEvent
	transferEvents []wallet.TransferEvent
}

func (r *recordingListener) HandleSystemEvent(sys *System, ev SystemEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systemEvents = append(r.systemEvents, ev)
}

func (r *recordingListener) HandleNetworkEvent(sys *System, ev NetworkEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networkEvents = append(r.networkEvents, ev)
}

func (r *recordingListener) HandleManagerEvent(sys *System, m *wallet.Manager, ev wallet.ManagerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managerEvents = append(r.managerEvents, ev)
}

func (r *recordingListener) HandleWalletEvent(sys *System, m *wallet.Manager,
	w *wallet.Wallet, ev wallet.WalletEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.walletEvents = append(r.walletEvents, ev)
}

func (r *recordingListener) HandleTransferEvent(sys *System, m *wallet.Manager,
	w *wallet.Wallet, t *wallet.Transfer, ev wallet.TransferEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferEvents = append(r.transferEvents, ev)
}

func (r *recordingListener) systemKinds() []SystemEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SystemEventKind, len(r.systemEvents))
	for i, ev := range r.systemEvents {
		out[i] = ev.Kind
	}
	return out
}

func (r *recordingListener) hasSystemKind(kind SystemEventKind) bool {
	for _, k := range r.systemKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *recordingListener) hasNetworkKind(kind NetworkEventKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.networkEvents {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func (r *recordingListener) totalEvents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.systemEvents) + len(r.networkEvents) + len(r.managerEvents) +
		len(r.walletEvents) + len(r.transferEvents)
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

type systemEnv struct {
	registry *Registry
	engine   *ledger.SimEngine
	system   *System
	listener *recordingListener
}

func newSystemEnv(t *testing.T, simCfg ledger.SimConfig, cfg Config) *systemEnv {
	t.Helper()

	env := &systemEnv{
		registry: NewRegistry(),
		engine:   ledger.NewSimEngine(simCfg),
		listener: &recordingListener{},
	}
	cfg.Listener = env.listener
	if cfg.Account == nil {
		cfg.Account = chain.NewAccount(time.Now())
	}

	sys, err := New(env.registry, env.engine, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.system = sys
	t.Cleanup(sys.Destroy)
	return env
}

func TestNewAnnouncesCreated(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})

	waitUntil(t, func() bool { return env.listener.hasSystemKind(SystemEventCreated) },
		"created event")
	if kinds := env.listener.systemKinds(); kinds[0] != SystemEventCreated {
		t.Errorf("first system event = %v, want created", kinds[0])
	}
	if _, ok := env.registry.Resolve(env.system.Handle()); !ok {
		t.Error("system not resolvable through its registry handle")
	}
}

func TestAddNetworkIsIdempotent(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})

	n := chain.BitcoinMainnet()
	if got := env.system.AddNetwork(n); got != n {
		t.Fatal("AddNetwork returned a different network")
	}
	dup := chain.BitcoinMainnet()
	if got := env.system.AddNetwork(dup); got != n {
		t.Error("adding the same uid twice must return the first network")
	}
	if len(env.system.Networks()) != 1 {
		t.Errorf("networks = %d, want 1", len(env.system.Networks()))
	}

	waitUntil(t, func() bool { return env.listener.hasSystemKind(SystemEventNetworkAdded) },
		"network added event")
	waitUntil(t, func() bool { return env.listener.hasNetworkKind(NetworkEventCreated) },
		"network created event")
}

func TestCreateWalletManagerRequiresRegisteredNetwork(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})

	_, err := env.system.CreateWalletManager(chain.BitcoinMainnet(),
		chain.SyncModeAPIOnly, chain.AddressSchemeBTCSegwit)
	if !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("err = %v, want ErrUnknownNetwork", err)
	}
}

func TestCreateWalletManagerIsIdempotentPerNetwork(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})
	n := env.system.AddNetwork(chain.BitcoinMainnet())

	m1, err := env.system.CreateWalletManager(n, chain.SyncModeAPIOnly, chain.AddressSchemeBTCSegwit)
	if err != nil {
		t.Fatalf("CreateWalletManager: %v", err)
	}
	m2, err := env.system.CreateWalletManager(n, chain.SyncModeAPIOnly, chain.AddressSchemeBTCSegwit)
	if err != nil {
		t.Fatalf("CreateWalletManager again: %v", err)
	}
	if m1 != m2 {
		t.Error("second CreateWalletManager on the same network must return the first manager")
	}
	if got, ok := env.system.ManagerForNetwork(n); !ok || got != m1 {
		t.Error("ManagerForNetwork did not find the created manager")
	}

	waitUntil(t, func() bool { return env.listener.hasSystemKind(SystemEventManagerAdded) },
		"manager added event")
}

func TestConnectAllRunsSyncCycle(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{BlockHeight: 700_000}, Config{})
	n := env.system.AddNetwork(chain.BitcoinMainnet())
	m, err := env.system.CreateWalletManager(n, chain.SyncModeAPIOnly, chain.AddressSchemeBTCSegwit)
	if err != nil {
		t.Fatalf("CreateWalletManager: %v", err)
	}

	env.system.ConnectAll()
	waitUntil(t, func() bool { return m.State().Kind == wallet.ManagerConnected },
		"manager connected")
	waitUntil(t, func() bool { return n.Height() == 700_000 }, "network height")

	env.system.DisconnectAll()
	waitUntil(t, func() bool { return m.State().Kind == wallet.ManagerDisconnected },
		"manager disconnected")
}

func TestConfigureWithoutQueryUsesBuiltins(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})

	networks := env.system.Configure(context.Background(), true)
	if len(networks) == 0 {
		t.Fatal("Configure returned no networks")
	}
	for _, n := range networks {
		if !n.IsMainnet() {
			t.Errorf("mainnet discovery returned testnet %s", n.UID())
		}
	}
	if _, ok := env.system.NetworkByUID("bitcoin-mainnet"); !ok {
		t.Error("bitcoin-mainnet not registered")
	}
	if _, ok := env.system.NetworkByUID("bitcoin-testnet"); ok {
		t.Error("bitcoin-testnet registered on mainnet discovery")
	}

	waitUntil(t, func() bool { return env.listener.hasSystemKind(SystemEventDiscoveredNetworks) },
		"discovered networks event")
}

// queryService is a minimal fake deployment for discovery tests.
func queryService(t *testing.T, blockchains []*query.Blockchain,
	currencies []*query.Currency) *query.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/blockchains", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"blockchains": blockchains})
	})
	mux.HandleFunc("/blockchains/", func(w http.ResponseWriter, r *http.Request) {
		for _, b := range blockchains {
			if r.URL.Path == "/blockchains/"+b.ID {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(b)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/currencies", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("blockchain_id")
		var out []*query.Currency
		for _, c := range currencies {
			if id == "" || c.BlockchainID == id {
				out = append(out, c)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"currencies": out})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return query.New(query.Config{BaseURL: srv.URL})
}

func testBlockchain() *query.Blockchain {
	return &query.Blockchain{
		ID:             "litecoin-mainnet",
		Name:           "Litecoin",
		Network:        "mainnet",
		IsMainnet:      true,
		NativeCurrency: "litecoin-mainnet:ltc",
		BlockHeight:    2_500_000,
		FeeEstimates: []query.FeeEstimate{
			{FeeID: "fast", ConfirmationTimeMS: 150_000, Amount: "200"},
			{FeeID: "slow", ConfirmationTimeMS: 600_000, Amount: "20"},
		},
		ConfirmationsUntilFinal: 6,
	}
}

func testCurrencies() []*query.Currency {
	return []*query.Currency{
		{
			ID:           "litecoin-mainnet:ltc",
			Name:         "Litecoin",
			Code:         "ltc",
			Type:         "native",
			BlockchainID: "litecoin-mainnet",
			Verified:     true,
			Denominations: []query.Denomination{
				{Name: "litoshi", Code: "litoshi", Decimals: 0},
				{Name: "litecoin", Code: "ltc", Decimals: 8},
			},
		},
		{
			ID:           "litecoin-mainnet:omni",
			Name:         "Omni",
			Code:         "omni",
			Type:         "other",
			BlockchainID: "litecoin-mainnet",
			Verified:     true,
			Denominations: []query.Denomination{
				{Name: "omni", Code: "omni", Decimals: 8},
			},
		},
	}
}

func TestConfigureDiscoversFromService(t *testing.T) {
	qc := queryService(t, []*query.Blockchain{testBlockchain()}, testCurrencies())
	env := newSystemEnv(t, ledger.SimConfig{}, Config{Query: qc})

	networks := env.system.Configure(context.Background(), true)
	if len(networks) != 1 {
		t.Fatalf("discovered %d networks, want 1", len(networks))
	}
	n := networks[0]
	if n.UID() != "litecoin-mainnet" {
		t.Fatalf("uid = %s", n.UID())
	}
	if n.Height() != 2_500_000 {
		t.Errorf("height = %d, want 2500000", n.Height())
	}
	if n.ConfirmationsUntilFinal() != 6 {
		t.Errorf("confirmations = %d, want 6", n.ConfirmationsUntilFinal())
	}
	if n.NativeCurrency().Code() != "ltc" {
		t.Errorf("native code = %s, want ltc", n.NativeCurrency().Code())
	}

	base, ok := n.BaseUnitFor(n.NativeCurrency())
	if !ok || base.Code() != "litoshi" || !base.IsBase() {
		t.Errorf("base unit = %+v, want litoshi base", base)
	}
	display, ok := n.DefaultUnitFor(n.NativeCurrency())
	if !ok || display.Code() != "ltc" || display.Decimals() != 8 {
		t.Errorf("default unit = %+v, want ltc/8", display)
	}

	fees := n.Fees()
	if len(fees) != 2 {
		t.Fatalf("fees = %d, want 2", len(fees))
	}
	if min := n.MinimumFee(); min.UID != "litecoin-mainnet:slow" {
		t.Errorf("minimum fee = %s, want the slow tier", min.UID)
	}

	if _, ok := n.CurrencyByUID("litecoin-mainnet:omni"); !ok {
		t.Error("verified token currency not associated")
	}
}

func TestBuildNetworkRejectsMissingNative(t *testing.T) {
	b := testBlockchain()
	b.NativeCurrency = "litecoin-mainnet:missing"
	if _, err := buildNetwork(b, testCurrencies()); err == nil {
		t.Fatal("buildNetwork accepted a descriptor without its native currency")
	}
}

func TestBuildNetworkRejectsEmptyFees(t *testing.T) {
	b := testBlockchain()
	b.FeeEstimates = nil
	if _, err := buildNetwork(b, testCurrencies()); !errors.Is(err, chain.ErrEmptyFeeSchedule) {
		t.Fatalf("err = %v, want ErrEmptyFeeSchedule", err)
	}
}

func TestBuildCurrencySynthesizesBaseUnit(t *testing.T) {
	cur, units := buildCurrency(&query.Currency{
		ID:   "x:tok",
		Name: "Token",
		Code: "tok",
		Type: "erc20",
		Denominations: []query.Denomination{
			{Name: "token", Code: "tok", Decimals: 18},
		},
	})
	if len(units) != 2 {
		t.Fatalf("units = %d, want synthesized base plus one", len(units))
	}
	if !units[0].IsBase() || units[0].Code() != "toki" {
		t.Errorf("base unit = %s, want synthesized toki", units[0].Code())
	}
	if units[1].Decimals() != 18 {
		t.Errorf("display decimals = %d, want 18", units[1].Decimals())
	}
	if cur.CurrencyType() != currency.TypeERC20 {
		t.Errorf("currency type = %s, want erc20", cur.CurrencyType())
	}
}

func TestUpdateNetworkFees(t *testing.T) {
	b := testBlockchain()
	qc := queryService(t, []*query.Blockchain{b}, testCurrencies())
	env := newSystemEnv(t, ledger.SimConfig{}, Config{Query: qc})

	networks := env.system.Configure(context.Background(), true)
	if len(networks) != 1 {
		t.Fatalf("discovered %d networks, want 1", len(networks))
	}

	// The service now quotes different tiers.
	b.FeeEstimates = []query.FeeEstimate{
		{FeeID: "fast", ConfirmationTimeMS: 150_000, Amount: "400"},
	}
	b.BlockHeight = 2_600_000

	updated, err := env.system.UpdateNetworkFees(context.Background())
	if err != nil {
		t.Fatalf("UpdateNetworkFees: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("updated %d networks, want 1", len(updated))
	}
	n := updated[0]
	if fees := n.Fees(); len(fees) != 1 || fees[0].UID != "litecoin-mainnet:fast" {
		t.Errorf("fees not replaced: %+v", fees)
	}
	if n.Height() != 2_600_000 {
		t.Errorf("height = %d, want 2600000", n.Height())
	}

	waitUntil(t, func() bool { return env.listener.hasNetworkKind(NetworkEventFeesUpdated) },
		"fees updated event")
}

func TestUpdateNetworkFeesRequiresQueryService(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})
	if _, err := env.system.UpdateNetworkFees(context.Background()); !errors.Is(err, ErrNoQueryService) {
		t.Fatalf("err = %v, want ErrNoQueryService", err)
	}
}

func TestDestroyDropsLateCallbacks(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{BlockHeight: 100}, Config{})
	n := env.system.AddNetwork(chain.BitcoinMainnet())
	m, err := env.system.CreateWalletManager(n, chain.SyncModeAPIOnly, chain.AddressSchemeBTCSegwit)
	if err != nil {
		t.Fatalf("CreateWalletManager: %v", err)
	}

	env.system.ConnectAll()
	waitUntil(t, func() bool { return m.State().Kind == wallet.ManagerConnected },
		"manager connected")

	mh := m.Handle()
	wh := m.PrimaryWallet().Native()
	systemToken := uint64(env.system.Handle())
	cbs := callbacksFor(env.registry, env.system.Handle())

	env.system.Destroy()
	if _, ok := env.registry.Resolve(env.system.Handle()); ok {
		t.Fatal("destroyed system still resolvable")
	}
	waitUntil(t, func() bool { return env.listener.hasSystemKind(SystemEventDeleted) },
		"deleted event")
	time.Sleep(20 * time.Millisecond)
	before := env.listener.totalEvents()

	// An engine racing the teardown reports against stale handles. Nothing
	// may reach the listener.
	cbs.ManagerEvent(systemToken, mh, ledger.ManagerEvent{
		Kind: ledger.ManagerEventBlockHeightUpdated, Height: 101,
	})
	cbs.WalletEvent(systemToken, mh, wh, ledger.WalletEvent{
		Kind: ledger.WalletEventBalanceUpdated,
	})
	cbs.TransferEvent(systemToken, mh, wh, 999, ledger.TransferEvent{
		Kind: ledger.TransferEventCreated,
	})
	cbs.SaveBlock(systemToken, mh, 101, []byte("header"))

	time.Sleep(50 * time.Millisecond)
	if after := env.listener.totalEvents(); after != before {
		t.Fatalf("late callbacks produced %d events", after-before)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})
	env.system.Destroy()
	env.system.Destroy()
}

func subscriptionService(t *testing.T) *query.Client {
	t.Helper()

	var mu sync.Mutex
	subs := make(map[string]*query.Subscription)

	mux := http.NewServeMux()
	mux.HandleFunc("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		var sub query.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		sub.ID = "sub-1"
		mu.Lock()
		subs[sub.ID] = &sub
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&sub)
	})
	mux.HandleFunc("/subscriptions/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/subscriptions/"):]
		mu.Lock()
		defer mu.Unlock()
		sub, ok := subs[id]
		switch {
		case !ok:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodDelete:
			delete(subs, id)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sub)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return query.New(query.Config{BaseURL: srv.URL})
}

func TestSubscribeRoundTrip(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{Query: subscriptionService(t)})

	sub, err := env.system.Subscribe(context.Background(), &query.Subscription{
		Endpoint: query.SubscriptionEndpoint{Kind: "fcm", Value: "token-1"},
		Currencies: []query.SubscriptionCurrency{
			{CurrencyID: "bitcoin-mainnet:btc", Addresses: []string{"addr-1"}},
		},
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.ID == "" {
		t.Fatal("subscription id not assigned")
	}
	if err := env.system.Unsubscribe(context.Background(), sub.ID); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
}

func TestSubscribeRequiresQueryService(t *testing.T) {
	env := newSystemEnv(t, ledger.SimConfig{}, Config{})
	if _, err := env.system.Subscribe(context.Background(), &query.Subscription{}); !errors.Is(err, ErrNoQueryService) {
		t.Fatalf("err = %v, want ErrNoQueryService", err)
	}
}
