package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/ledger"
	"github.com/coinharbor/walletcore/internal/wallet"
)

// NetworkInfo is the wire representation of a network.
type NetworkInfo struct {
	UID           string    `json:"uid"`
	Name          string    `json:"name"`
	Mainnet       bool      `json:"mainnet"`
	Height        uint64    `json:"height"`
	Confirmations uint32    `json:"confirmations_until_final"`
	NativeCode    string    `json:"native_code"`
	Fees          []FeeInfo `json:"fees"`
}

// FeeInfo is the wire representation of one fee tier.
type FeeInfo struct {
	UID                string `json:"uid"`
	ConfirmationTimeMS uint64 `json:"confirmation_time_ms"`
	Price              string `json:"price_per_cost_factor"`
}

// ManagerInfo is the wire representation of a wallet manager.
type ManagerInfo struct {
	Network string `json:"network"`
	State   string `json:"state"`
	Mode    string `json:"mode"`
	Scheme  string `json:"address_scheme"`
	Height  uint64 `json:"height"`
	Address string `json:"primary_address"`
	Wallets int    `json:"wallets"`
}

// WalletInfo is the wire representation of a wallet.
type WalletInfo struct {
	Network   string `json:"network"`
	Currency  string `json:"currency"`
	Code      string `json:"code"`
	Unit      string `json:"unit"`
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Transfers int    `json:"transfers"`
}

func networkToInfo(n *chain.Network) NetworkInfo {
	info := NetworkInfo{
		UID:           n.UID(),
		Name:          n.Name(),
		Mainnet:       n.IsMainnet(),
		Height:        n.Height(),
		Confirmations: n.ConfirmationsUntilFinal(),
		NativeCode:    n.NativeCurrency().Code(),
	}
	for _, f := range n.Fees() {
		info.Fees = append(info.Fees, FeeInfo{
			UID:                f.UID,
			ConfirmationTimeMS: f.ConfirmationTimeMS,
			Price:              f.PricePerCostFactor.String(),
		})
	}
	return info
}

func managerToInfo(m *wallet.Manager) ManagerInfo {
	return ManagerInfo{
		Network: m.Network().UID(),
		State:   m.State().Kind.String(),
		Mode:    string(m.Mode()),
		Scheme:  string(m.AddressScheme()),
		Height:  m.Network().Height(),
		Address: string(m.PrimaryWallet().Address()),
		Wallets: len(m.Wallets()),
	}
}

func walletToInfo(w *wallet.Wallet) WalletInfo {
	return WalletInfo{
		Network:   w.Manager().Network().UID(),
		Currency:  w.Currency().UID(),
		Code:      w.Currency().Code(),
		Unit:      w.Unit().Code(),
		Address:   string(w.Address()),
		Balance:   w.Balance().String(),
		Transfers: len(w.Transfers()),
	}
}

func transferToInfo(t *wallet.Transfer) map[string]interface{} {
	info := map[string]interface{}{
		"currency":  t.Wallet().Currency().Code(),
		"source":    string(t.Source()),
		"target":    string(t.Target()),
		"amount":    t.Amount().String(),
		"direction": t.Direction().String(),
		"state":     t.State().Kind.String(),
	}
	if hash, ok := t.Hash(); ok {
		info["hash"] = hash
	}
	if count, ok := t.Confirmations(); ok {
		info["confirmations"] = count
	}
	return info
}

// networkParams selects a manager by its network UID.
type networkParams struct {
	Network string `json:"network"`
}

func (s *Server) managerByNetwork(uid string) (*wallet.Manager, error) {
	if uid == "" {
		return nil, fmt.Errorf("network is required")
	}
	n, ok := s.sys.NetworkByUID(uid)
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", uid)
	}
	m, ok := s.sys.ManagerForNetwork(n)
	if !ok {
		return nil, fmt.Errorf("no manager for network: %s", uid)
	}
	return m, nil
}

// systemStatus returns an overview of the running system.
func (s *Server) systemStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	managers := s.sys.Managers()
	infos := make([]ManagerInfo, 0, len(managers))
	for _, m := range managers {
		infos = append(infos, managerToInfo(m))
	}

	status := map[string]interface{}{
		"account":  s.sys.Account().UID(),
		"networks": len(s.sys.Networks()),
		"managers": infos,
	}
	if s.wsHub != nil {
		status["ws_clients"] = s.wsHub.ClientCount()
	}
	return status, nil
}

// systemConnect connects every wallet manager.
func (s *Server) systemConnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	s.sys.ConnectAll()
	return map[string]int{"managers": len(s.sys.Managers())}, nil
}

// systemDisconnect disconnects every wallet manager.
func (s *Server) systemDisconnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	s.sys.DisconnectAll()
	return map[string]int{"managers": len(s.sys.Managers())}, nil
}

// networksList returns all registered networks.
func (s *Server) networksList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	networks := s.sys.Networks()
	infos := make([]NetworkInfo, 0, len(networks))
	for _, n := range networks {
		infos = append(infos, networkToInfo(n))
	}
	return infos, nil
}

// networksGet returns one network by UID.
func (s *Server) networksGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p networkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	n, ok := s.sys.NetworkByUID(p.Network)
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", p.Network)
	}
	return networkToInfo(n), nil
}

// networksUpdateFees refreshes fee schedules from the query service.
func (s *Server) networksUpdateFees(ctx context.Context, params json.RawMessage) (interface{}, error) {
	updated, err := s.sys.UpdateNetworkFees(ctx)
	if err != nil {
		return nil, err
	}

	uids := make([]string, 0, len(updated))
	for _, n := range updated {
		uids = append(uids, n.UID())
	}
	return map[string]interface{}{"updated": uids}, nil
}

// managersList returns all wallet managers.
func (s *Server) managersList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	managers := s.sys.Managers()
	infos := make([]ManagerInfo, 0, len(managers))
	for _, m := range managers {
		infos = append(infos, managerToInfo(m))
	}
	return infos, nil
}

// managersConnect connects one manager.
func (s *Server) managersConnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p networkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}
	if err := m.Connect(""); err != nil {
		return nil, err
	}
	return managerToInfo(m), nil
}

// managersDisconnect disconnects one manager.
func (s *Server) managersDisconnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p networkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}
	if err := m.Disconnect(); err != nil {
		return nil, err
	}
	return managerToInfo(m), nil
}

// managersSync starts a sync cycle on one manager.
func (s *Server) managersSync(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p networkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}
	if err := m.Sync(); err != nil {
		return nil, err
	}
	return managerToInfo(m), nil
}

// managersSyncToDepth starts a sync rewound to the requested depth.
func (s *Server) managersSyncToDepth(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Network string `json:"network"`
		Depth   string `json:"depth"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	var depth ledger.SyncDepth
	switch p.Depth {
	case "last_confirmed_send":
		depth = ledger.SyncDepthFromLastConfirmedSend
	case "last_trusted_block":
		depth = ledger.SyncDepthFromLastTrustedBlock
	case "full_resync":
		depth = ledger.SyncDepthFullResync
	default:
		return nil, fmt.Errorf("unknown sync depth: %s", p.Depth)
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}
	if err := m.SyncToDepth(depth); err != nil {
		return nil, err
	}
	return managerToInfo(m), nil
}

// managersSetMode changes a manager's sync mode.
func (s *Server) managersSetMode(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Network string `json:"network"`
		Mode    string `json:"mode"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}
	if err := m.SetMode(chain.SyncMode(p.Mode)); err != nil {
		return nil, err
	}
	return managerToInfo(m), nil
}

// walletsList returns wallets, optionally restricted to one network.
func (s *Server) walletsList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p networkParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	var managers []*wallet.Manager
	if p.Network != "" {
		m, err := s.managerByNetwork(p.Network)
		if err != nil {
			return nil, err
		}
		managers = []*wallet.Manager{m}
	} else {
		managers = s.sys.Managers()
	}

	infos := make([]WalletInfo, 0)
	for _, m := range managers {
		for _, w := range m.Wallets() {
			infos = append(infos, walletToInfo(w))
		}
	}
	return infos, nil
}

// walletsGetBalance returns the balance of one wallet. Without a currency
// code it answers for the network's primary wallet.
func (s *Server) walletsGetBalance(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Network  string `json:"network"`
		Currency string `json:"currency,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}

	w, err := s.walletByCode(m, p.Currency)
	if err != nil {
		return nil, err
	}
	return walletToInfo(w), nil
}

// transfersList returns transfers, optionally restricted to one currency.
func (s *Server) transfersList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Network  string `json:"network"`
		Currency string `json:"currency,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}

	infos := make([]map[string]interface{}, 0)
	for _, w := range m.Wallets() {
		if p.Currency != "" && w.Currency().Code() != p.Currency {
			continue
		}
		for _, t := range w.Transfers() {
			infos = append(infos, transferToInfo(t))
		}
	}
	return infos, nil
}

// transfersGet looks up one transfer by hash.
func (s *Server) transfersGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Network string `json:"network"`
		Hash    string `json:"hash"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.Hash == "" {
		return nil, fmt.Errorf("hash is required")
	}

	m, err := s.managerByNetwork(p.Network)
	if err != nil {
		return nil, err
	}

	for _, w := range m.Wallets() {
		if t, ok := w.TransferByHash(p.Hash); ok {
			return transferToInfo(t), nil
		}
	}
	return nil, fmt.Errorf("transfer not found: %s", p.Hash)
}

// storageBlock returns the persisted block checkpoint for a network.
func (s *Server) storageBlock(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p networkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if s.store == nil {
		return nil, fmt.Errorf("storage not configured")
	}

	rec, err := s.store.GetBlock(p.Network)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no block checkpoint for network: %s", p.Network)
	}
	return map[string]interface{}{
		"network":  rec.NetworkUID,
		"height":   rec.Height,
		"saved_at": rec.SavedAt,
	}, nil
}

// storagePeers returns persisted peers for a network.
func (s *Server) storagePeers(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Network string `json:"network"`
		Limit   int    `json:"limit,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if s.store == nil {
		return nil, fmt.Errorf("storage not configured")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	peers, err := s.store.ListPeers(p.Network, limit)
	if err != nil {
		return nil, err
	}

	infos := make([]map[string]interface{}, 0, len(peers))
	for _, pr := range peers {
		infos = append(infos, map[string]interface{}{
			"address":    pr.Address,
			"first_seen": pr.FirstSeen,
			"last_seen":  pr.LastSeen,
		})
	}
	return infos, nil
}

// storageTransactions returns persisted raw transactions for a network.
func (s *Server) storageTransactions(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p networkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if s.store == nil {
		return nil, fmt.Errorf("storage not configured")
	}

	txs, err := s.store.ListTransactions(p.Network)
	if err != nil {
		return nil, err
	}

	infos := make([]map[string]interface{}, 0, len(txs))
	for _, tx := range txs {
		infos = append(infos, map[string]interface{}{
			"txid":       tx.TxID,
			"size":       len(tx.Raw),
			"updated_at": tx.UpdatedAt,
		})
	}
	return infos, nil
}

func (s *Server) walletByCode(m *wallet.Manager, code string) (*wallet.Wallet, error) {
	if code == "" {
		return m.PrimaryWallet(), nil
	}
	for _, w := range m.Wallets() {
		if w.Currency().Code() == code {
			return w, nil
		}
	}
	return nil, fmt.Errorf("no wallet for currency: %s", code)
}
