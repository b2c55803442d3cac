package system

import (
	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/wallet"
)

// SystemEventKind enumerates system-level events.
type SystemEventKind int

const (
	SystemEventCreated SystemEventKind = iota
	SystemEventNetworkAdded
	SystemEventManagerAdded
	SystemEventDiscoveredNetworks
	SystemEventDeleted
)

// SystemEvent is one system-level event.
type SystemEvent struct {
	Kind SystemEventKind

	Network  *chain.Network   // SystemEventNetworkAdded
	Manager  *wallet.Manager  // SystemEventManagerAdded
	Networks []*chain.Network // SystemEventDiscoveredNetworks
}

// NetworkEventKind enumerates network-level events.
type NetworkEventKind int

const (
	NetworkEventCreated NetworkEventKind = iota
	NetworkEventFeesUpdated
)

// NetworkEvent is one network-level event.
type NetworkEvent struct {
	Kind    NetworkEventKind
	Network *chain.Network
}

// Listener receives every event the system announces. All methods are
// invoked one at a time, in announcement order, on the system's delivery
// queue; a slow listener delays delivery but never loses ordering.
type Listener interface {
	HandleSystemEvent(sys *System, ev SystemEvent)
	HandleNetworkEvent(sys *System, ev NetworkEvent)
	HandleManagerEvent(sys *System, m *wallet.Manager, ev wallet.ManagerEvent)
	HandleWalletEvent(sys *System, m *wallet.Manager, w *wallet.Wallet, ev wallet.WalletEvent)
	HandleTransferEvent(sys *System, m *wallet.Manager, w *wallet.Wallet,
		t *wallet.Transfer, ev wallet.TransferEvent)
}
