package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit tracks an incoming chain transaction for a user's deposit address.
// Rows are upserted by (user_id, tx_hash) each tracking cycle; the
// confirmation count only ever moves up. Credited flips exactly once, when
// the count first crosses the confirmation threshold.
type Deposit struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	TxHash        string          `db:"tx_hash"`
	Amount        decimal.Decimal `db:"amount"`
	Confirmations int             `db:"confirmations"`
	Credited      bool            `db:"credited"`
	CreatedAt     time.Time       `db:"created_at"`
}

// CompletedDeposit is one entry of the completed-deposit notification queue,
// joined with the data the notification template needs.
type CompletedDeposit struct {
	DepositID int64           `db:"deposit_id"`
	UserID    int64           `db:"user_id"`
	Username  string          `db:"username"`
	Amount    decimal.Decimal `db:"amount"`
	Balance   decimal.Decimal `db:"balance"`
}
