package service

import "errors"

var (
	// ErrInsufficientFunds means a balance could not cover the requested
	// amount. It is a handled rejection: the user is notified and the
	// triggering message acknowledged, with no ledger mutation.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRateLimited is returned by the notification sink when the platform
	// rejected a send for rate-limiting reasons. Callers may delay and retry
	// rather than abandon the unit.
	ErrRateLimited = errors.New("rate limited")

	// ErrAmbiguousOutcome means an external transfer call timed out after
	// being issued: the transfer may or may not have been broadcast. It must
	// never be silently retried with a second transfer.
	ErrAmbiguousOutcome = errors.New("ambiguous transfer outcome")

	// ErrUnknownDepositAddress means an incoming chain transaction paid an
	// address no user owns.
	ErrUnknownDepositAddress = errors.New("unknown deposit address")

	// ErrWithdrawalBlocked means the user has an unresolved withdrawal
	// attempt; no new withdrawals are accepted until reconciliation
	// resolves it.
	ErrWithdrawalBlocked = errors.New("withdrawal blocked pending reconciliation")
)
