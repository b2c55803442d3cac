// Package query implements the client for the blockchain query service:
// typed REST access to blockchains, currencies, transactions and
// subscriptions, plus a websocket push stream.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/coinharbor/walletcore/pkg/logging"
)

// Client talks to one query-service deployment.
type Client struct {
	http *resty.Client
	log  *logging.Logger
}

// Config holds query client configuration.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// New creates a query client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.AuthToken != "" {
		http.SetAuthToken(cfg.AuthToken)
	}

	return &Client{
		http: http,
		log:  logging.GetDefault().Component("query"),
	}
}

// statusErr maps an HTTP failure to a package error.
func statusErr(resp *resty.Response) error {
	switch resp.StatusCode() {
	case 404:
		return ErrNotFound
	case 401, 403:
		return ErrAuthentication
	default:
		return fmt.Errorf("%w: status %d", ErrService, resp.StatusCode())
	}
}

// GetBlockchains lists the blockchains the service tracks.
func (c *Client) GetBlockchains(ctx context.Context, mainnet bool) ([]*Blockchain, error) {
	var result struct {
		Blockchains []*Blockchain `json:"blockchains"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("testnet", strconv.FormatBool(!mainnet)).
		SetResult(&result).
		Get("/blockchains")
	if err != nil {
		return nil, fmt.Errorf("get blockchains: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return result.Blockchains, nil
}

// GetBlockchain fetches one blockchain by id.
func (c *Client) GetBlockchain(ctx context.Context, id string) (*Blockchain, error) {
	var result Blockchain
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/blockchains/" + id)
	if err != nil {
		return nil, fmt.Errorf("get blockchain %s: %w", id, err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return &result, nil
}

// GetBlockHeight returns the current height of one blockchain.
func (c *Client) GetBlockHeight(ctx context.Context, id string) (uint64, error) {
	b, err := c.GetBlockchain(ctx, id)
	if err != nil {
		return 0, err
	}
	return b.BlockHeight, nil
}

// GetCurrencies lists the currencies of one blockchain. An empty
// blockchainID lists everything.
func (c *Client) GetCurrencies(ctx context.Context, blockchainID string) ([]*Currency, error) {
	var result struct {
		Currencies []*Currency `json:"currencies"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&result)
	if blockchainID != "" {
		req.SetQueryParam("blockchain_id", blockchainID)
	}
	resp, err := req.Get("/currencies")
	if err != nil {
		return nil, fmt.Errorf("get currencies: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return result.Currencies, nil
}

// GetTransactions fetches the transactions touching any of the addresses in
// the height range [begin, end].
func (c *Client) GetTransactions(ctx context.Context, blockchainID string,
	addresses []string, begin, end uint64, includeRaw bool) ([]*Transaction, error) {
	var result struct {
		Transactions []*Transaction `json:"transactions"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"blockchain_id": blockchainID,
			"address":       strings.Join(addresses, ","),
			"start_height":  strconv.FormatUint(begin, 10),
			"end_height":    strconv.FormatUint(end, 10),
			"include_raw":   strconv.FormatBool(includeRaw),
		}).
		SetResult(&result).
		Get("/transactions")
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return result.Transactions, nil
}

// GetBalances fetches the per-address balances for one blockchain.
func (c *Client) GetBalances(ctx context.Context, blockchainID string,
	addresses []string) ([]*AddressBalance, error) {
	var result struct {
		Balances []*AddressBalance `json:"balances"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"blockchain_id": blockchainID,
			"address":       strings.Join(addresses, ","),
		}).
		SetResult(&result).
		Get("/balances")
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return result.Balances, nil
}

// SubmitTransaction broadcasts a signed transaction through the service.
func (c *Client) SubmitTransaction(ctx context.Context, blockchainID, txID string, data []byte) error {
	body := map[string]interface{}{
		"blockchain_id":  blockchainID,
		"transaction_id": txID,
		"data":           data,
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/transactions")
	if err != nil {
		return fmt.Errorf("submit transaction: %w", err)
	}
	if !resp.IsSuccess() {
		return statusErr(resp)
	}
	return nil
}

// CreateSubscription registers a push subscription. A missing device id is
// filled with a fresh one.
func (c *Client) CreateSubscription(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if sub.DeviceID == "" {
		sub.DeviceID = uuid.NewString()
	}
	var result Subscription
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sub).
		SetResult(&result).
		Post("/subscriptions")
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return &result, nil
}

// GetSubscription fetches one subscription.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var result Subscription
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/subscriptions/" + id)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return &result, nil
}

// UpdateSubscription replaces a subscription's endpoint and currency set.
func (c *Client) UpdateSubscription(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if sub.ID == "" {
		return nil, ErrNotFound
	}
	var result Subscription
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sub).
		SetResult(&result).
		Put("/subscriptions/" + sub.ID)
	if err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if !resp.IsSuccess() {
		return nil, statusErr(resp)
	}
	return &result, nil
}

// DeleteSubscription removes a subscription.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/subscriptions/" + id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	if !resp.IsSuccess() {
		return statusErr(resp)
	}
	return nil
}
