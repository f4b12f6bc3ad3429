package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByUsername retrieves a user by username, case-insensitively.
	// Returns nil if no such user exists.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByUsernameForUpdate retrieves a user and row-locks it for the
	// duration of the enclosing transaction
	GetByUsernameForUpdate(ctx context.Context, username string) (*models.User, error)

	// GetByID retrieves a user by row id
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByDepositAddress retrieves the user owning a deposit address
	GetByDepositAddress(ctx context.Context, address string) (*models.User, error)

	// Create creates a new user with a zero balance
	Create(ctx context.Context, username string) (*models.User, error)

	// SetDepositAddress assigns a deposit address to a user
	SetDepositAddress(ctx context.Context, userID int64, address string) error

	// AddBalance adds to a user's balance atomically
	AddBalance(ctx context.Context, userID int64, amount decimal.Decimal) error

	// DeductBalance deducts from a user's balance atomically, returning
	// ErrInsufficientFunds if the balance does not cover the amount
	DeductBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
}

// MessageRepository defines the interface for the message audit log
type MessageRepository interface {
	// GetByExternalID returns the audit row for an inbound message, or nil
	GetByExternalID(ctx context.Context, externalID string) (*models.Message, error)

	// Create inserts the audit row for a processed message
	Create(ctx context.Context, msg *models.Message) error
}

// TipRepository defines the interface for tip records
type TipRepository interface {
	// Create inserts a tip record
	Create(ctx context.Context, tip *models.Tip) error
}

// DepositRepository defines the interface for deposit tracking and the
// completed-deposit notification queue
type DepositRepository interface {
	// Upsert records an incoming chain transaction, keyed (user, tx hash);
	// the confirmation count never decreases
	Upsert(ctx context.Context, userID int64, txHash string, amount decimal.Decimal, confirmations int) error

	// ListUncredited returns deposits not yet credited to a balance
	ListUncredited(ctx context.Context) ([]*models.Deposit, error)

	// UpdateConfirmations raises a deposit's confirmation count
	UpdateConfirmations(ctx context.Context, depositID int64, confirmations int) (*models.Deposit, error)

	// MarkCredited flips the credited flag, reporting whether this call
	// flipped it
	MarkCredited(ctx context.Context, depositID int64) (bool, error)

	// EnqueueCompleted adds a deposit to the completed-deposit queue
	EnqueueCompleted(ctx context.Context, depositID, userID int64) error

	// ListCompleted returns pending completed-deposit notifications
	ListCompleted(ctx context.Context) ([]*models.CompletedDeposit, error)

	// DeleteCompleted removes a delivered notification from the queue
	DeleteCompleted(ctx context.Context, depositID int64) error
}

// WithdrawalRepository defines the interface for withdrawals and their
// reconciliation attempts
type WithdrawalRepository interface {
	// Create inserts a withdrawal record
	Create(ctx context.Context, w *models.Withdrawal) error

	// GetByTxID returns the withdrawal recorded for a chain transaction id,
	// or nil
	GetByTxID(ctx context.Context, txID string) (*models.Withdrawal, error)

	// CreateAttempt records a withdrawal attempt before the external send
	CreateAttempt(ctx context.Context, a *models.WithdrawalAttempt) error

	// UpdateAttemptState moves an attempt to a new state
	UpdateAttemptState(ctx context.Context, attemptID string, state models.WithdrawalAttemptState, txID *string) error

	// ListUnresolvedAttempts returns attempts still pending or ambiguous
	ListUnresolvedAttempts(ctx context.Context) ([]*models.WithdrawalAttempt, error)

	// HasUnresolvedAttempts reports whether a user has unresolved attempts
	HasUnresolvedAttempts(ctx context.Context, userID int64) (bool, error)
}

// EventPublisher publishes events to be emitted after the unit of work commits
type EventPublisher interface {
	Publish(e events.Event)
}

// UnitOfWork bundles the repositories over one database transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	MessageRepository() MessageRepository
	TipRepository() TipRepository
	DepositRepository() DepositRepository
	WithdrawalRepository() WithdrawalRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// InboundMessage is one unread inbox item as delivered by the message source
type InboundMessage struct {
	Kind             models.MessageKind
	ExternalID       string
	ParentExternalID string
	Author           string
	Subreddit        string
	Body             string
	Context          string
	CreatedAt        time.Time
}

// InboxClient is the inbox side of the platform: polling, acknowledgement
// and the thing lookups the engines need
type InboxClient interface {
	// UnreadMessages polls for unread inbox items
	UnreadMessages(ctx context.Context) ([]InboundMessage, error)

	// MarkRead acknowledges a message so it is not redelivered. Best-effort:
	// local idempotency does not depend on it.
	MarkRead(ctx context.Context, externalID string) error

	// MessageAuthor resolves the author of a thing (used for the parent of
	// a tip or gild mention)
	MessageAuthor(ctx context.Context, externalID string) (string, error)

	// Gild issues the external award action against a thing
	Gild(ctx context.Context, externalID string) error
}

// Notifier is the notification sink: template-rendered messages and replies.
// Both return ErrRateLimited as a distinguished outcome.
type Notifier interface {
	// SendMessage sends a private message rendered from a named template
	SendMessage(ctx context.Context, template string, subs map[string]string, subject, recipient string) error

	// Reply posts a reply to the source message rendered from a named template
	Reply(ctx context.Context, template string, subs map[string]string, sourceExternalID string) error
}

// ChainTransaction is one entry of the daemon's recent-transaction listing
type ChainTransaction struct {
	Address       string
	TxID          string
	Amount        decimal.Decimal
	Confirmations int
}

// ChainClient is the coin daemon RPC surface
type ChainClient interface {
	// NewAddress generates a fresh receiving address for the account
	NewAddress(ctx context.Context) (string, error)

	// Send transfers the amount from the account to an external address and
	// returns the chain transaction id. A timeout after the call was issued
	// is reported as ErrAmbiguousOutcome.
	Send(ctx context.Context, address string, amount decimal.Decimal) (string, error)

	// TransactionConfirmations returns the confirmation count for a tx
	TransactionConfirmations(ctx context.Context, txID string) (int, error)

	// ListRecentTransactions lists recent transactions for the account
	ListRecentTransactions(ctx context.Context, limit int) ([]ChainTransaction, error)
}

// RateClient looks up the current coins-per-USD exchange rate
type RateClient interface {
	GetRate(ctx context.Context) (decimal.Decimal, error)
}

// UserService defines user-level operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or lazily creates one
	GetOrCreateUser(ctx context.Context, username string) (*models.User, error)

	// Balance returns the user's current balance, creating the user if needed
	Balance(ctx context.Context, username string) (decimal.Decimal, error)

	// DepositAddress returns the user's deposit address, generating and
	// persisting one on first request
	DepositAddress(ctx context.Context, username string) (string, error)
}

// TransferRequest carries one tip or gild through the transfer engine
type TransferRequest struct {
	Sender       string
	Recipient    string
	Amount       decimal.Decimal // native units, already currency-resolved
	AmountUSD    decimal.Decimal
	ParsedAmount string
	IsGild       bool
	Message      InboundMessage
}

// TransferService is the atomic balance-move engine for tips and gilds
type TransferService interface {
	// Transfer executes one tip or gild as a single unit of work
	Transfer(ctx context.Context, req TransferRequest) error
}

// WithdrawService couples a local debit to an irreversible external transfer
type WithdrawService interface {
	// Withdraw debits the user and issues the chain transfer as one unit
	Withdraw(ctx context.Context, amount decimal.Decimal, address string, msg InboundMessage) error

	// Reconcile resolves unresolved withdrawal attempts against the chain
	// node. Runs on startup, before any new withdrawals are processed.
	Reconcile(ctx context.Context) error
}

// DepositService tracks incoming chain transactions and their confirmations
type DepositService interface {
	// DiscoverDeposits upserts recent incoming transactions
	DiscoverDeposits(ctx context.Context) error

	// PromotePendingDeposits re-queries confirmation counts and credits
	// deposits that cross the threshold
	PromotePendingDeposits(ctx context.Context) error
}

// NotifyService consumes the completed-deposit notification queue
type NotifyService interface {
	// ProcessCompletedDeposits sends one notification per queue entry,
	// removing entries on success and leaving failures for retry
	ProcessCompletedDeposits(ctx context.Context) error
}
