package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tip links a processed message to the balance move it caused. A gild is a
// tip whose amount is the fixed gild price and which additionally triggered
// the external award action. Rows are created atomically with the balance
// mutation and never mutated afterwards.
type Tip struct {
	ID           int64           `db:"id"`
	MessageID    int64           `db:"message_id"`
	SenderID     int64           `db:"sender_id"`
	RecipientID  int64           `db:"recipient_id"`
	Amount       decimal.Decimal `db:"amount"`
	AmountUSD    decimal.Decimal `db:"amount_usd"`
	ParsedAmount string          `db:"parsed_amount"`
	IsGild       bool            `db:"is_gild"`
	CreatedAt    time.Time       `db:"created_at"`
}
