package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lbryio/lbry-social-tipbot/database"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// MessageRepository implements the service.MessageRepository interface
type MessageRepository struct {
	q queryable
}

// NewMessageRepository creates a new message repository backed by the pool
func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{q: db.Pool}
}

func newMessageRepositoryWithTx(tx queryable) *MessageRepository {
	return &MessageRepository{q: tx}
}

// GetByExternalID retrieves the audit row for an inbound message, if one
// exists. A non-nil result means the message was already acted upon.
func (r *MessageRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Message, error) {
	query := `
		SELECT id, author_id, kind, external_id, parent_external_id,
		       subreddit, body, context, external_created, created_at
		FROM messages
		WHERE external_id = $1
	`

	var msg models.Message
	err := r.q.QueryRow(ctx, query, externalID).Scan(
		&msg.ID,
		&msg.AuthorID,
		&msg.Kind,
		&msg.ExternalID,
		&msg.ParentExternalID,
		&msg.Subreddit,
		&msg.Body,
		&msg.Context,
		&msg.ExternalCreated,
		&msg.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", externalID, err)
	}
	return &msg, nil
}

// Create inserts the audit row for a processed message and sets its id.
// The unique constraint on external_id rejects a second insert for the same
// message, which is what makes redelivered messages harmless.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (author_id, kind, external_id, parent_external_id,
		                      subreddit, body, context, external_created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		msg.AuthorID,
		msg.Kind,
		msg.ExternalID,
		msg.ParentExternalID,
		msg.Subreddit,
		msg.Body,
		msg.Context,
		msg.ExternalCreated,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message %s: %w", msg.ExternalID, err)
	}
	return nil
}
