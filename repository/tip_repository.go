package repository

import (
	"context"
	"fmt"

	"github.com/lbryio/lbry-social-tipbot/database"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// TipRepository implements the service.TipRepository interface
type TipRepository struct {
	q queryable
}

// NewTipRepository creates a new tip repository backed by the pool
func NewTipRepository(db *database.DB) *TipRepository {
	return &TipRepository{q: db.Pool}
}

func newTipRepositoryWithTx(tx queryable) *TipRepository {
	return &TipRepository{q: tx}
}

// Create inserts a tip record and sets its id
func (r *TipRepository) Create(ctx context.Context, tip *models.Tip) error {
	query := `
		INSERT INTO tips (message_id, sender_id, recipient_id, amount,
		                  amount_usd, parsed_amount, is_gild)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		tip.MessageID,
		tip.SenderID,
		tip.RecipientID,
		tip.Amount,
		tip.AmountUSD,
		tip.ParsedAmount,
		tip.IsGild,
	).Scan(&tip.ID, &tip.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tip for message %d: %w", tip.MessageID, err)
	}
	return nil
}
