package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal records a completed external transfer. A row exists only after
// the chain daemon has returned a transaction id; it is never mutated.
type Withdrawal struct {
	ID        int64           `db:"id"`
	UserID    int64           `db:"user_id"`
	TxID      string          `db:"tx_id"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt time.Time       `db:"created_at"`
}

// WithdrawalAttemptState tracks the lifecycle of a withdrawal attempt
type WithdrawalAttemptState string

const (
	// AttemptStatePending is set before the chain send is issued
	AttemptStatePending WithdrawalAttemptState = "pending"
	// AttemptStateCompleted means the send returned a tx id and the debit committed
	AttemptStateCompleted WithdrawalAttemptState = "completed"
	// AttemptStateFailed means the daemon reported an explicit error; nothing moved
	AttemptStateFailed WithdrawalAttemptState = "failed"
	// AttemptStateAmbiguous means the send timed out after being issued. The
	// transfer may or may not have been broadcast; no further withdrawals are
	// accepted for the user until reconciliation resolves the attempt.
	AttemptStateAmbiguous WithdrawalAttemptState = "ambiguous"
)

// Resolved reports whether the attempt reached a terminal state.
func (s WithdrawalAttemptState) Resolved() bool {
	return s == AttemptStateCompleted || s == AttemptStateFailed
}

// WithdrawalAttempt is the reconciliation key for a single withdrawal. It is
// written outside the ledger transaction, before the external send, so that
// a crash or timeout mid-withdrawal leaves evidence of what may have been
// broadcast.
type WithdrawalAttempt struct {
	ID        string                 `db:"id"` // uuid
	UserID    int64                  `db:"user_id"`
	Address   string                 `db:"address"`
	Amount    decimal.Decimal        `db:"amount"`
	State     WithdrawalAttemptState `db:"state"`
	TxID      *string                `db:"tx_id"`
	CreatedAt time.Time              `db:"created_at"`
	UpdatedAt time.Time              `db:"updated_at"`
}
