package wallet

import "errors"

// Fee and limit estimation errors. ErrServiceUnavailable and ErrServiceError
// mean "cannot estimate"; ErrInsufficientFunds means the estimate proves the
// operation impossible.
var (
	ErrServiceUnavailable = errors.New("estimation service unavailable")
	ErrServiceError       = errors.New("estimation service error")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)

// Manager precondition errors.
var (
	ErrUnsupportedMode      = errors.New("sync mode not supported by network")
	ErrUnsupportedScheme    = errors.New("address scheme not supported by network")
	ErrCurrencyNotSupported = errors.New("currency not supported by network")
)

// Sweeper errors for the recover-funds-from-a-foreign-key flow.
var (
	ErrSweepUnsupportedCurrency = errors.New("sweep: unsupported currency")
	ErrSweepInvalidKey          = errors.New("sweep: invalid key")
	ErrSweepInvalidSourceWallet = errors.New("sweep: invalid source wallet")
	ErrSweepInsufficientFunds   = errors.New("sweep: insufficient funds")
	ErrSweepUnableToSweep       = errors.New("sweep: unable to sweep")
	ErrSweepNoTransfersFound    = errors.New("sweep: no transfers found")
)
