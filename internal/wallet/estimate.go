package wallet

import (
	"github.com/coinharbor/walletcore/internal/chain"
	"github.com/coinharbor/walletcore/internal/currency"
)

// feeEstimateConvergenceLimit bounds the fixed-point iteration in
// EstimateLimitMaximum. The bound is a domain constant carried over from
// observed fee curves; exhausting it reports a service error rather than a
// possibly-wrong amount.
const feeEstimateConvergenceLimit = 3

// EstimateFee asks the engine to price a transfer of amount to target at
// the given network fee. The completion runs once, on the system's
// delivery queue, with either a fee basis or an estimation error.
func (w *Wallet) EstimateFee(target chain.Address, amount *currency.Amount,
	fee *chain.NetworkFee, completion func(*TransferFeeBasis, error)) {

	cookie := w.manager.feeCoordinator.AddHandler(completion)
	err := w.manager.engine.EstimateFeeBasis(
		w.manager.native, w.native, uint64(cookie),
		string(target), amount.BaseValue(), fee.PricePerCostFactor.BaseValue())
	if err != nil {
		w.manager.feeCoordinator.Resolve(cookie, nil, ErrServiceUnavailable)
	}
}

// EstimateLimitMaximum estimates the maximum amount this wallet can send to
// target at the given fee, accounting for the fee itself.
func (w *Wallet) EstimateLimitMaximum(target chain.Address, fee *chain.NetworkFee,
	completion func(*currency.Amount, error)) {
	w.estimateLimit(true, target, fee, completion)
}

// EstimateLimitMinimum estimates the minimum sendable amount to target at
// the given fee.
func (w *Wallet) EstimateLimitMinimum(target chain.Address, fee *chain.NetworkFee,
	completion func(*currency.Amount, error)) {
	w.estimateLimit(false, target, fee, completion)
}

// complete schedules an estimation completion on the delivery queue, never
// on the caller's goroutine.
func (w *Wallet) complete(completion func(*currency.Amount, error),
	amount *currency.Amount, err error) {
	w.manager.completionQueue.Enqueue(func() { completion(amount, err) })
}

func (w *Wallet) estimateLimit(asMaximum bool, target chain.Address,
	fee *chain.NetworkFee, completion func(*currency.Amount, error)) {

	// First pass: the engine may already know the exact answer.
	est, err := w.manager.engine.EstimateLimit(w.manager.native, w.native, asMaximum)
	if err != nil {
		w.complete(completion, nil, ErrServiceError)
		return
	}
	amount := currency.NewAmountFromBase(est.Amount, w.unit)

	if !est.NeedFeeEstimate {
		if est.IsZeroIfInsufficientFunds && amount.IsZero() {
			w.complete(completion, nil, ErrInsufficientFunds)
		} else {
			w.complete(completion, amount, nil)
		}
		return
	}

	// A fee estimate is needed. The fee may be paid from a different
	// wallet (token transfers pay fees in the native currency).
	feeWallet, ok := w.manager.WalletForCurrency(fee.PricePerCostFactor.Currency())
	if !ok {
		w.complete(completion, nil, ErrServiceError)
		return
	}

	// An empty fee wallet can never pay; skip the engine entirely.
	if feeWallet.Balance().IsZero() {
		w.complete(completion, nil, ErrInsufficientFunds)
		return
	}

	// Distinct fee wallet: one estimate, checked against the fee wallet's
	// balance. No feedback loop exists because the sent amount is fixed.
	if feeWallet != w {
		w.EstimateFee(target, amount, fee, func(basis *TransferFeeBasis, err error) {
			switch {
			case err != nil:
				w.complete(completion, nil, err)
			case feeWallet.Balance().Ge(basis.Fee()):
				w.complete(completion, amount, nil)
			default:
				w.complete(completion, nil, ErrInsufficientFunds)
			}
		})
		return
	}

	// Minimum: one estimate; the balance must cover amount plus fee.
	if !asMaximum {
		w.EstimateFee(target, amount, fee, func(basis *TransferFeeBasis, err error) {
			if err != nil {
				w.complete(completion, nil, err)
				return
			}
			total, aerr := amount.Add(basis.Fee())
			if aerr != nil {
				w.complete(completion, nil, ErrServiceError)
				return
			}
			if w.Balance().Ge(total) {
				w.complete(completion, amount, nil)
			} else {
				w.complete(completion, nil, ErrInsufficientFunds)
			}
		})
		return
	}

	// Maximum with the fee paid from this wallet: the fee depends on the
	// amount and the amount on the fee, so iterate to a fixed point with
	// an explicit bound.
	go w.convergeLimitMaximum(target, fee, amount, completion)
}

// convergeLimitMaximum runs the bounded fixed-point iteration: estimate the
// fee for the candidate amount, shrink the amount by the fee, and stop when
// two successive fee estimates agree.
func (w *Wallet) convergeLimitMaximum(target chain.Address, fee *chain.NetworkFee,
	amount *currency.Amount, completion func(*currency.Amount, error)) {

	transferFee := currency.Zero(w.unit)
	estimateAmount := amount

	for attempt := 0; attempt < feeEstimateConvergenceLimit; attempt++ {
		basis, err := w.estimateFeeSync(target, estimateAmount, fee)
		if err != nil {
			w.complete(completion, nil, err)
			return
		}

		newFee := basis.Fee()
		newAmount, aerr := amount.Sub(newFee)
		if aerr != nil {
			w.complete(completion, nil, ErrServiceError)
			return
		}

		if newFee.Eq(transferFee) {
			// Fixed point: amount - fee is sendable if the balance covers
			// the whole transaction.
			total, aerr := newAmount.Add(newFee)
			if aerr != nil {
				w.complete(completion, nil, ErrServiceError)
				return
			}
			if w.Balance().Ge(total) {
				w.complete(completion, newAmount, nil)
			} else {
				w.complete(completion, nil, ErrInsufficientFunds)
			}
			return
		}

		transferFee = newFee
		estimateAmount = newAmount
	}

	// No convergence within the bound; never report a possibly-wrong
	// amount.
	w.complete(completion, nil, ErrServiceError)
}

type feeResult struct {
	basis *TransferFeeBasis
	err   error
}

// estimateFeeSync adapts the asynchronous fee estimate for the convergence
// loop. It must not be called from a delivery-queue goroutine.
func (w *Wallet) estimateFeeSync(target chain.Address, amount *currency.Amount,
	fee *chain.NetworkFee) (*TransferFeeBasis, error) {

	ch := make(chan feeResult, 1)
	w.EstimateFee(target, amount, fee, func(basis *TransferFeeBasis, err error) {
		ch <- feeResult{basis: basis, err: err}
	})
	r := <-ch
	return r.basis, r.err
}
