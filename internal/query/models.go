package query

import (
	"errors"
	"math/big"
)

// Wire models for the blockchain query service. Amounts travel as decimal
// strings in base units; heights of unconfirmed entries are omitted.

// Common errors.
var (
	ErrNotFound       = errors.New("query: not found")
	ErrAuthentication = errors.New("query: authentication failed")
	ErrService        = errors.New("query: service error")
	ErrBadAmount      = errors.New("query: malformed amount")
)

// Blockchain describes one network the service tracks.
type Blockchain struct {
	ID                      string        `json:"id"`
	Name                    string        `json:"name"`
	Network                 string        `json:"network"`
	IsMainnet               bool          `json:"is_mainnet"`
	NativeCurrency          string        `json:"native_currency_id"`
	BlockHeight             uint64        `json:"block_height"`
	FeeEstimates            []FeeEstimate `json:"fee_estimates"`
	ConfirmationsUntilFinal uint32        `json:"confirmations_until_final"`
}

// FeeEstimate is one service-side fee tier.
type FeeEstimate struct {
	FeeID              string `json:"fee_id"`
	ConfirmationTimeMS uint64 `json:"estimated_confirmation_in"`
	Amount             string `json:"fee_amount"` // base units
}

// Currency describes one asset on a blockchain.
type Currency struct {
	ID            string         `json:"currency_id"`
	Name          string         `json:"name"`
	Code          string         `json:"code"`
	Type          string         `json:"type"` // "native", "erc20"
	BlockchainID  string         `json:"blockchain_id"`
	Address       string         `json:"address,omitempty"` // token contract
	Verified      bool           `json:"verified"`
	Denominations []Denomination `json:"denominations"`
}

// Denomination is one unit of a currency.
type Denomination struct {
	Name     string `json:"name"`
	Code     string `json:"short_name"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
}

// Transaction is one transaction returned by the service.
type Transaction struct {
	ID           string     `json:"transaction_id"`
	Hash         string     `json:"hash"`
	BlockchainID string     `json:"blockchain_id"`
	BlockHeight  uint64     `json:"block_height,omitempty"`
	Index        uint64     `json:"index,omitempty"`
	Timestamp    uint64     `json:"timestamp,omitempty"`
	Status       string     `json:"status"` // "confirmed", "submitted", "failed"
	Fee          string     `json:"fee,omitempty"` // base units
	Raw          []byte     `json:"raw,omitempty"`
	Transfers    []Transfer `json:"transfers"`
}

// Transfer is one value movement inside a transaction.
type Transfer struct {
	ID         string `json:"transfer_id"`
	CurrencyID string `json:"currency_id"`
	From       string `json:"from_address,omitempty"`
	To         string `json:"to_address,omitempty"`
	Amount     string `json:"amount"` // base units
	Index      uint64 `json:"index"`
}

// AddressBalance is the service's answer for one address.
type AddressBalance struct {
	Address    string `json:"address"`
	CurrencyID string `json:"currency_id"`
	Balance    string `json:"balance"` // base units
}

// SubscriptionEndpoint is where push notifications go.
type SubscriptionEndpoint struct {
	Kind  string `json:"kind"` // "apns", "fcm"
	Value string `json:"value"`
}

// SubscriptionCurrency names the addresses watched for one currency.
type SubscriptionCurrency struct {
	CurrencyID string   `json:"currency_id"`
	Addresses  []string `json:"addresses"`
}

// Subscription is one push-notification registration.
type Subscription struct {
	ID         string                 `json:"subscription_id,omitempty"`
	DeviceID   string                 `json:"device_id"`
	Endpoint   SubscriptionEndpoint   `json:"endpoint"`
	Currencies []SubscriptionCurrency `json:"currencies"`
}

// ParseAmount converts a base-unit decimal string into an integer.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrBadAmount
	}
	return v, nil
}
