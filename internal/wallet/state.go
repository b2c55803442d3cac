package wallet

import (
	"fmt"

	"github.com/coinharbor/walletcore/internal/currency"
	"github.com/coinharbor/walletcore/internal/ledger"
)

// ManagerStateKind enumerates the wallet-manager connection states.
type ManagerStateKind int

const (
	ManagerCreated ManagerStateKind = iota
	ManagerConnected
	ManagerSyncing
	ManagerDisconnected
	ManagerDeleted
)

func (k ManagerStateKind) String() string {
	switch k {
	case ManagerCreated:
		return "created"
	case ManagerConnected:
		return "connected"
	case ManagerSyncing:
		return "syncing"
	case ManagerDisconnected:
		return "disconnected"
	case ManagerDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("manager-state-%d", int(k))
	}
}

// DisconnectReason explains a disconnected manager state.
type DisconnectReason struct {
	Kind    ledger.DisconnectReasonKind
	Errno   int
	Message string
}

// ManagerState is the manager connection state plus disconnect detail.
type ManagerState struct {
	Kind   ManagerStateKind
	Reason *DisconnectReason
}

func managerStateFromRaw(raw ledger.ManagerStateKind, reason *ledger.DisconnectReason) ManagerState {
	s := ManagerState{}
	switch raw {
	case ledger.ManagerStateCreated:
		s.Kind = ManagerCreated
	case ledger.ManagerStateConnected:
		s.Kind = ManagerConnected
	case ledger.ManagerStateSyncing:
		s.Kind = ManagerSyncing
	case ledger.ManagerStateDisconnected:
		s.Kind = ManagerDisconnected
	case ledger.ManagerStateDeleted:
		s.Kind = ManagerDeleted
	}
	if reason != nil {
		s.Reason = &DisconnectReason{
			Kind:    reason.Kind,
			Errno:   reason.Errno,
			Message: reason.Message,
		}
	}
	return s
}

// TransferStateKind enumerates the transfer lifecycle states. A transfer
// only ever moves forward; deleted is terminal and reachable from any state.
type TransferStateKind int

const (
	TransferCreated TransferStateKind = iota
	TransferSigned
	TransferSubmitted
	TransferIncluded
	TransferFailed
	TransferDeleted
)

func (k TransferStateKind) String() string {
	switch k {
	case TransferCreated:
		return "created"
	case TransferSigned:
		return "signed"
	case TransferSubmitted:
		return "submitted"
	case TransferIncluded:
		return "included"
	case TransferFailed:
		return "failed"
	case TransferDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("transfer-state-%d", int(k))
	}
}

// Confirmation carries inclusion detail for an included transfer.
type Confirmation struct {
	BlockNumber      uint64
	TransactionIndex uint64
	Timestamp        uint64
	Fee              *currency.Amount // nil when the engine cannot attribute one
	Success          bool
	Message          string
}

// SubmitError is the structured error on a failed transfer. It is carried
// as data, never thrown.
type SubmitError struct {
	Kind    ledger.SubmitErrorKind
	Errno   int
	Message string
}

func (e *SubmitError) Error() string {
	if e.Kind == ledger.SubmitErrorPosix {
		return fmt.Sprintf("submit failed: errno %d: %s", e.Errno, e.Message)
	}
	if e.Message != "" {
		return "submit failed: " + e.Message
	}
	return "submit failed"
}

// TransferState is the transfer lifecycle state plus per-kind detail.
type TransferState struct {
	Kind         TransferStateKind
	Confirmation *Confirmation // set when Kind == TransferIncluded
	Submit       *SubmitError  // set when Kind == TransferFailed
}

func transferStateFromRaw(raw ledger.TransferState, feeUnit *currency.Unit) TransferState {
	s := TransferState{}
	switch raw.Kind {
	case ledger.TransferStateCreated:
		s.Kind = TransferCreated
	case ledger.TransferStateSigned:
		s.Kind = TransferSigned
	case ledger.TransferStateSubmitted:
		s.Kind = TransferSubmitted
	case ledger.TransferStateIncluded:
		s.Kind = TransferIncluded
	case ledger.TransferStateFailed:
		s.Kind = TransferFailed
	case ledger.TransferStateDeleted:
		s.Kind = TransferDeleted
	}
	if raw.Confirmation != nil {
		c := &Confirmation{
			BlockNumber:      raw.Confirmation.BlockNumber,
			TransactionIndex: raw.Confirmation.TransactionIndex,
			Timestamp:        raw.Confirmation.Timestamp,
			Success:          raw.Confirmation.Success,
			Message:          raw.Confirmation.Message,
		}
		if raw.Confirmation.Fee != nil && feeUnit != nil {
			c.Fee = currency.NewAmountFromBase(raw.Confirmation.Fee, feeUnit)
		}
		s.Confirmation = c
	}
	if raw.Submit != nil {
		s.Submit = &SubmitError{
			Kind:    raw.Submit.Kind,
			Errno:   raw.Submit.Errno,
			Message: raw.Submit.Message,
		}
	}
	return s
}
