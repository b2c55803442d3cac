// Package main provides the walletcored daemon - a multi-chain wallet core
// running against the simulated ledger engine and, when configured, a
// blockchain query service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/config"
	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/internal/query"
	"github.com/coinharbor/walletcore/internal/rpc"
	"github.com/coinharbor/walletcore/internal/storage"
	"github.com/coinharbor/walletcore/internal/system"
	"github.com/coinharbor/walletcore/internal/wallet"
	"github.com/coinharbor/walletcore/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.walletcore", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		testnet     = flag.Bool("testnet", false, "Run on testnet (separate networks and data)")
		queryURL    = flag.String("query-url", "", "Query service base URL, overrides config")
		queryToken  = flag.String("query-token", "", "Query service auth token, overrides config")
		rpcAddr     = flag.String("rpc-addr", "", "JSON-RPC listen address, overrides config")
		noRPC       = flag.Bool("no-rpc", false, "Disable the JSON-RPC server")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{
		Level:      *logLevel,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("walletcored %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	// Testnet keeps its own data alongside mainnet data.
	effectiveDataDir := *dataDir
	if *testnet {
		effectiveDataDir = filepath.Join(*dataDir, "testnet")
	}

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadConfig(filepath.Dir(*configFile))
	} else {
		cfg, err = config.LoadConfig(effectiveDataDir)
	}
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// CLI flags take precedence over the config file.
	cfg.Logging.Level = *logLevel
	cfg.Storage.DataDir = effectiveDataDir
	if *testnet {
		cfg.NetworkType = config.NetworkTestnet
	} else {
		cfg.NetworkType = config.NetworkMainnet
	}
	if *queryURL != "" {
		cfg.Query.BaseURL = *queryURL
	}
	if *queryToken != "" {
		cfg.Query.AuthToken = *queryToken
	}
	if *rpcAddr != "" {
		cfg.RPC.ListenAddr = *rpcAddr
	}
	if *noRPC {
		cfg.RPC.Enabled = false
	}

	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
		File:       expandPath(cfg.Logging.File),
	})
	logging.SetDefault(log)
	log.Info("Config loaded", "path", config.ConfigPath(effectiveDataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(&storage.Config{DataDir: cfg.Storage.DataDir})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", expandPath(cfg.Storage.DataDir))

	var queryClient *query.Client
	if cfg.Query.BaseURL != "" {
		queryClient = query.New(query.Config{
			BaseURL:   cfg.Query.BaseURL,
			AuthToken: cfg.Query.AuthToken,
			Timeout:   cfg.Query.Timeout,
		})
		log.Info("Query service configured", "url", cfg.Query.BaseURL)
	} else {
		log.Info("No query service configured, using builtin networks")
	}

	engine := ledger.NewSimEngine(ledger.SimConfig{BlockHeight: 1})
	registry := system.NewRegistry()

	sys, err := system.New(registry, engine, system.Config{
		Account:     chain.NewAccount(time.Now()),
		StoragePath: expandPath(cfg.Storage.DataDir),
		Query:       queryClient,
		Store:       store,
		Listener:    &logListener{log: log.Component("events")},
	})
	if err != nil {
		log.Fatal("Failed to create system", "error", err)
	}

	networks := sys.Configure(ctx, !cfg.IsTestnet())
	log.Info("Networks discovered", "count", len(networks))

	for _, n := range networks {
		mode := chain.SyncMode(cfg.Sync.Mode)
		if !n.SupportsMode(mode) {
			mode = n.DefaultMode()
		}
		m, err := sys.CreateWalletManager(n, mode, n.DefaultScheme())
		if err != nil {
			log.Warn("Manager not created", "network", n.UID(), "error", err)
			continue
		}
		log.Info("Manager created", "network", n.UID(), "mode", m.Mode(),
			"address", m.PrimaryWallet().Address())
	}

	// JSON-RPC API. The server is also a system listener: it pushes wallet
	// events to websocket subscribers alongside the log listener.
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcServer = rpc.NewServer(sys, store)
		if err := rpcServer.Start(cfg.RPC.ListenAddr); err != nil {
			log.Fatal("Failed to start RPC server", "error", err)
		}
		sys.SetListener(&multiListener{listeners: []system.Listener{
			&logListener{log: log.Component("events")},
			rpcServer,
		}})
	}

	sys.ConnectAll()

	// Push stream: a transaction notification triggers a sync on the
	// affected network's manager.
	var stream *query.Stream
	if cfg.Query.StreamURL != "" {
		stream = query.NewStream(cfg.Query.StreamURL, func(ev query.StreamEvent) {
			n, ok := sys.NetworkByUID(ev.BlockchainID)
			if !ok {
				return
			}
			if m, ok := sys.ManagerForNetwork(n); ok {
				if err := m.Sync(); err != nil {
					log.Warn("Stream-triggered sync failed", "network", n.UID(), "error", err)
				}
			}
		})
		if err := stream.Connect(ctx); err != nil {
			log.Warn("Push stream unavailable", "error", err)
			stream = nil
		} else {
			log.Info("Push stream connected", "url", cfg.Query.StreamURL)
		}
	}

	// Periodic fee refresh.
	if queryClient != nil && cfg.Sync.FeeRefreshInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Sync.FeeRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := sys.UpdateNetworkFees(ctx); err != nil {
						log.Warn("Fee refresh failed", "error", err)
					}
				}
			}
		}()
	}

	printBanner(log, sys, cfg)

	// Status ticker.
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, m := range sys.Managers() {
					log.Info("Status", "network", m.Network().UID(),
						"state", m.State().Kind, "height", m.Network().Height())
				}
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")

	cancel()
	if stream != nil {
		stream.Close()
	}
	if rpcServer != nil {
		rpcServer.Stop()
	}
	sys.DisconnectAll()
	sys.Destroy()

	log.Info("Goodbye!")
}

// multiListener fans every system event out to several listeners.
type multiListener struct {
	listeners []system.Listener
}

func (ml *multiListener) HandleSystemEvent(sys *system.System, ev system.SystemEvent) {
	for _, l := range ml.listeners {
		l.HandleSystemEvent(sys, ev)
	}
}

func (ml *multiListener) HandleNetworkEvent(sys *system.System, ev system.NetworkEvent) {
	for _, l := range ml.listeners {
		l.HandleNetworkEvent(sys, ev)
	}
}

func (ml *multiListener) HandleManagerEvent(sys *system.System, m *wallet.Manager, ev wallet.ManagerEvent) {
	for _, l := range ml.listeners {
		l.HandleManagerEvent(sys, m, ev)
	}
}

func (ml *multiListener) HandleWalletEvent(sys *system.System, m *wallet.Manager,
	w *wallet.Wallet, ev wallet.WalletEvent) {
	for _, l := range ml.listeners {
		l.HandleWalletEvent(sys, m, w, ev)
	}
}

func (ml *multiListener) HandleTransferEvent(sys *system.System, m *wallet.Manager,
	w *wallet.Wallet, t *wallet.Transfer, ev wallet.TransferEvent) {
	for _, l := range ml.listeners {
		l.HandleTransferEvent(sys, m, w, t, ev)
	}
}

// logListener logs every system event. A real application would feed its UI
// from these callbacks.
type logListener struct {
	log *logging.Logger
}

func (l *logListener) HandleSystemEvent(sys *system.System, ev system.SystemEvent) {
	switch ev.Kind {
	case system.SystemEventNetworkAdded:
		l.log.Info("Network added", "network", ev.Network.UID())
	case system.SystemEventManagerAdded:
		l.log.Info("Manager added", "network", ev.Manager.Network().UID())
	case system.SystemEventDiscoveredNetworks:
		l.log.Info("Discovery complete", "networks", len(ev.Networks))
	case system.SystemEventDeleted:
		l.log.Info("System deleted")
	}
}

func (l *logListener) HandleNetworkEvent(sys *system.System, ev system.NetworkEvent) {
	if ev.Kind == system.NetworkEventFeesUpdated {
		l.log.Info("Fees updated", "network", ev.Network.UID(), "tiers", len(ev.Network.Fees()))
	}
}

func (l *logListener) HandleManagerEvent(sys *system.System, m *wallet.Manager, ev wallet.ManagerEvent) {
	switch ev.Kind {
	case wallet.ManagerEventChanged:
		l.log.Info("Manager state", "network", m.Network().UID(),
			"old", ev.Old.Kind, "new", ev.New.Kind)
	case wallet.ManagerEventSyncProgress:
		l.log.Debug("Sync progress", "network", m.Network().UID(), "percent", ev.SyncPercent)
	case wallet.ManagerEventBlockUpdated:
		l.log.Debug("Block height", "network", m.Network().UID(), "height", ev.Height)
	}
}

func (l *logListener) HandleWalletEvent(sys *system.System, m *wallet.Manager,
	w *wallet.Wallet, ev wallet.WalletEvent) {
	if ev.Kind == wallet.WalletEventBalanceUpdated {
		l.log.Info("Balance", "currency", w.Currency().Code(), "amount", ev.Balance)
	}
}

func (l *logListener) HandleTransferEvent(sys *system.System, m *wallet.Manager,
	w *wallet.Wallet, t *wallet.Transfer, ev wallet.TransferEvent) {
	if ev.Kind == wallet.TransferEventChanged {
		l.log.Info("Transfer state", "currency", w.Currency().Code(),
			"old", ev.Old.Kind, "new", ev.New.Kind)
	}
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func printBanner(log *logging.Logger, sys *system.System, cfg *config.Config) {
	networkLabel := "mainnet"
	if cfg.IsTestnet() {
		networkLabel = "TESTNET"
	}

	log.Info("")
	log.Info("=================================================")
	log.Infof("  Wallet Core Daemon (%s)", networkLabel)
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  Account: %s", sys.Account().UID())
	log.Info("")
	log.Info("  Networks:")
	for _, n := range sys.Networks() {
		log.Infof("    %s (final after %d confirmations)", n.UID(), n.ConfirmationsUntilFinal())
	}
	log.Info("")
	log.Infof("  Data dir: %s", expandPath(cfg.Storage.DataDir))
	if cfg.RPC.Enabled {
		log.Infof("  RPC: http://%s (ws://%s/ws)", cfg.RPC.ListenAddr, cfg.RPC.ListenAddr)
	}
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
