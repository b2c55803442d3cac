// Package rpc provides a JSON-RPC 2.0 server for the walletcored daemon.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coinharbor/walletcore/internal/storage"
	"github.com/coinharbor/walletcore/internal/system"
	"github.com/coinharbor/walletcore/internal/wallet"
	"github.com/coinharbor/walletcore/pkg/logging"
)

// Server is a JSON-RPC 2.0 server.
type Server struct {
	sys   *system.System
	store *storage.Storage
	log   *logging.Logger
	wsHub *WSHub

	server   *http.Server
	listener net.Listener

	handlers map[string]Handler
	mu       sync.RWMutex
}

// Handler is a JSON-RPC method handler.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// NewServer creates a new JSON-RPC server.
func NewServer(sys *system.System, store *storage.Storage) *Server {
	s := &Server{
		sys:      sys,
		store:    store,
		log:      logging.GetDefault().Component("rpc"),
		handlers: make(map[string]Handler),
	}

	// Register handlers
	s.registerHandlers()

	return s
}

// registerHandlers registers all JSON-RPC method handlers.
func (s *Server) registerHandlers() {
	// System methods
	s.handlers["system_status"] = s.systemStatus
	s.handlers["system_connect"] = s.systemConnect
	s.handlers["system_disconnect"] = s.systemDisconnect

	// Network methods
	s.handlers["networks_list"] = s.networksList
	s.handlers["networks_get"] = s.networksGet
	s.handlers["networks_updateFees"] = s.networksUpdateFees

	// Manager methods
	s.handlers["managers_list"] = s.managersList
	s.handlers["managers_connect"] = s.managersConnect
	s.handlers["managers_disconnect"] = s.managersDisconnect
	s.handlers["managers_sync"] = s.managersSync
	s.handlers["managers_syncToDepth"] = s.managersSyncToDepth
	s.handlers["managers_setMode"] = s.managersSetMode

	// Wallet methods
	s.handlers["wallets_list"] = s.walletsList
	s.handlers["wallets_getBalance"] = s.walletsGetBalance

	// Transfer methods
	s.handlers["transfers_list"] = s.transfersList
	s.handlers["transfers_get"] = s.transfersGet

	// Storage methods (persisted sync state)
	s.handlers["storage_block"] = s.storageBlock
	s.handlers["storage_peers"] = s.storagePeers
	s.handlers["storage_transactions"] = s.storageTransactions
}

// Start starts the RPC server.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	// Initialize WebSocket hub
	s.wsHub = NewWSHub()
	go s.wsHub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleRPC)
	mux.HandleFunc("POST /{$}", s.handleRPC)
	mux.HandleFunc("OPTIONS /", s.handleCORS)
	mux.HandleFunc("OPTIONS /{$}", s.handleCORS)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /ws/", s.handleWS)

	s.server = &http.Server{
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("RPC server error", "error", err)
		}
	}()

	s.log.Info("RPC server started", "addr", addr, "ws", "ws://"+addr+"/ws")
	return nil
}

// Stop stops the RPC server.
func (s *Server) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound listen address, useful when started on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// The Server doubles as a system listener: wallet events it receives are
// pushed to WebSocket subscribers.

func (s *Server) HandleSystemEvent(sys *system.System, ev system.SystemEvent) {
	if s.wsHub == nil {
		return
	}
	if ev.Kind == system.SystemEventNetworkAdded {
		s.wsHub.Broadcast(EventNetworkAdded, map[string]string{
			"network": ev.Network.UID(),
		})
	}
}

func (s *Server) HandleNetworkEvent(sys *system.System, ev system.NetworkEvent) {
	if s.wsHub == nil {
		return
	}
	if ev.Kind == system.NetworkEventFeesUpdated {
		s.wsHub.Broadcast(EventNetworkFees, networkToInfo(ev.Network))
	}
}

func (s *Server) HandleManagerEvent(sys *system.System, m *wallet.Manager, ev wallet.ManagerEvent) {
	if s.wsHub == nil {
		return
	}
	switch ev.Kind {
	case wallet.ManagerEventChanged:
		s.wsHub.Broadcast(EventManagerState, map[string]string{
			"network": m.Network().UID(),
			"old":     ev.Old.Kind.String(),
			"new":     ev.New.Kind.String(),
		})
	case wallet.ManagerEventSyncProgress:
		s.wsHub.Broadcast(EventSyncProgress, map[string]interface{}{
			"network": m.Network().UID(),
			"percent": ev.SyncPercent,
		})
	case wallet.ManagerEventBlockUpdated:
		s.wsHub.Broadcast(EventBlockHeight, map[string]interface{}{
			"network": m.Network().UID(),
			"height":  ev.Height,
		})
	}
}

func (s *Server) HandleWalletEvent(sys *system.System, m *wallet.Manager,
	w *wallet.Wallet, ev wallet.WalletEvent) {
	if s.wsHub == nil {
		return
	}
	if ev.Kind == wallet.WalletEventBalanceUpdated {
		s.wsHub.Broadcast(EventWalletBalance, map[string]string{
			"network":  m.Network().UID(),
			"currency": w.Currency().Code(),
			"balance":  w.Balance().String(),
		})
	}
}

func (s *Server) HandleTransferEvent(sys *system.System, m *wallet.Manager,
	w *wallet.Wallet, t *wallet.Transfer, ev wallet.TransferEvent) {
	if s.wsHub == nil {
		return
	}
	if ev.Kind == wallet.TransferEventChanged {
		info := transferToInfo(t)
		info["network"] = m.Network().UID()
		info["old"] = ev.Old.Kind.String()
		s.wsHub.Broadcast(EventTransferState, info)
	}
}

// handleRPC handles incoming JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, ParseError, "Parse error", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, InvalidRequest, "Invalid Request", nil)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, req.ID, MethodNotFound, "Method not found", req.Method)
		return
	}

	result, err := handler(r.Context(), req.Params)
	if err != nil {
		s.writeError(w, req.ID, InternalError, err.Error(), nil)
		return
	}

	s.writeResult(w, req.ID, result)
}

// writeResult writes a successful response.
func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleCORS handles CORS preflight requests.
func (s *Server) handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// corsMiddleware adds CORS headers to all responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Allow requests from any origin (for Electron apps and web clients)
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400") // Cache preflight for 24 hours

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
