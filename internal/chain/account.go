package chain

import (
	"time"

	"github.com/google/uuid"
)

// Account identifies the key material a wallet manager operates on. The key
// itself never enters this core; the ledger engine derives addresses and
// signs from its own copy.
type Account struct {
	uid       string
	timestamp time.Time
}

// NewAccount creates an account with a fresh uid. The timestamp marks
// account creation and bounds how far back a sync must look.
func NewAccount(timestamp time.Time) *Account {
	return &Account{uid: uuid.NewString(), timestamp: timestamp}
}

// NewAccountWithUID restores an account with a known uid.
func NewAccountWithUID(uid string, timestamp time.Time) *Account {
	return &Account{uid: uid, timestamp: timestamp}
}

// UID returns the account identifier.
func (a *Account) UID() string { return a.uid }

// Timestamp returns the account creation time.
func (a *Account) Timestamp() time.Time { return a.timestamp }
