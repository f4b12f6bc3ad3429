package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a Reddit user with a balance. Users are created lazily
// the first time any command references them and are never deleted.
type User struct {
	ID             int64           `db:"id"`
	Username       string          `db:"username"`
	Balance        decimal.Decimal `db:"balance"`
	DepositAddress *string         `db:"deposit_address"`
	CreatedAt      time.Time       `db:"created_at"`
}

// HasDepositAddress reports whether the user has been assigned a deposit
// address on the chain.
func (u *User) HasDepositAddress() bool {
	return u.DepositAddress != nil && *u.DepositAddress != ""
}
