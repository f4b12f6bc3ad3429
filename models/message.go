package models

import (
	"time"
)

// MessageKind distinguishes how a message reached the bot
type MessageKind string

const (
	// MessageKindPrivate is a direct one-to-one inbox message (balance, deposit, withdraw)
	MessageKindPrivate MessageKind = "private"
	// MessageKindComment is a publicly visible comment mentioning the bot (tip, gild)
	MessageKindComment MessageKind = "comment"
)

// Message is the immutable audit row for a processed inbound message.
// The existence of a row for a given ExternalID is the idempotency witness
// that the message was already acted upon; mark-as-read at the inbox is
// best-effort only.
type Message struct {
	ID               int64       `db:"id"`
	AuthorID         int64       `db:"author_id"`
	Kind             MessageKind `db:"kind"`
	ExternalID       string      `db:"external_id"`
	ParentExternalID string      `db:"parent_external_id"`
	Subreddit        string      `db:"subreddit"`
	Body             string      `db:"body"`
	Context          string      `db:"context"`
	ExternalCreated  time.Time   `db:"external_created"`
	CreatedAt        time.Time   `db:"created_at"`
}
