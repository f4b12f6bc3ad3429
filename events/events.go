package events

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeUserCreated         EventType = "user_created"
	EventTypeTipSent             EventType = "tip_sent"
	EventTypeGildSent            EventType = "gild_sent"
	EventTypeWithdrawalCompleted EventType = "withdrawal_completed"
	EventTypeDepositConfirmed    EventType = "deposit_confirmed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// UserCreatedEvent represents a user row created on first reference
type UserCreatedEvent struct {
	UserID   int64
	Username string
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// TipSentEvent represents a committed balance move between two users
type TipSentEvent struct {
	TipID       int64
	SenderID    int64
	RecipientID int64
	Amount      decimal.Decimal
	AmountUSD   decimal.Decimal
}

func (e TipSentEvent) Type() EventType {
	return EventTypeTipSent
}

// GildSentEvent represents a committed gild, including the external award
type GildSentEvent struct {
	TipID       int64
	SenderID    int64
	RecipientID int64
	Amount      decimal.Decimal
	AmountUSD   decimal.Decimal
}

func (e GildSentEvent) Type() EventType {
	return EventTypeGildSent
}

// WithdrawalCompletedEvent represents a committed debit with its chain tx id
type WithdrawalCompletedEvent struct {
	WithdrawalID int64
	UserID       int64
	TxID         string
	Amount       decimal.Decimal
}

func (e WithdrawalCompletedEvent) Type() EventType {
	return EventTypeWithdrawalCompleted
}

// DepositConfirmedEvent represents a deposit crossing the confirmation
// threshold and being credited to the user's balance
type DepositConfirmedEvent struct {
	DepositID int64
	UserID    int64
	TxHash    string
	Amount    decimal.Decimal
}

func (e DepositConfirmedEvent) Type() EventType {
	return EventTypeDepositConfirmed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus only after the DB commit.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful DB commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Events are processed independently of the transaction lifecycle, so a
	// background context avoids issues with transaction context expiration.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback to drop pending events.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
