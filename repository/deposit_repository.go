package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lbryio/lbry-social-tipbot/database"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// DepositRepository implements the service.DepositRepository interface. It
// also owns the completed-deposit notification queue, which is keyed by
// deposit id.
type DepositRepository struct {
	q queryable
}

// NewDepositRepository creates a new deposit repository backed by the pool
func NewDepositRepository(db *database.DB) *DepositRepository {
	return &DepositRepository{q: db.Pool}
}

func newDepositRepositoryWithTx(tx queryable) *DepositRepository {
	return &DepositRepository{q: tx}
}

// Upsert records an incoming chain transaction for a user. Rows are keyed
// by (user_id, tx_hash); on conflict the confirmation count only ever moves
// up, so a stale daemon snapshot can never regress a deposit.
func (r *DepositRepository) Upsert(ctx context.Context, userID int64, txHash string, amount decimal.Decimal, confirmations int) error {
	query := `
		INSERT INTO deposits (user_id, tx_hash, amount, confirmations)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, tx_hash)
		DO UPDATE SET confirmations = GREATEST(deposits.confirmations, EXCLUDED.confirmations)
	`

	if _, err := r.q.Exec(ctx, query, userID, txHash, amount, confirmations); err != nil {
		return fmt.Errorf("failed to upsert deposit %s for user %d: %w", txHash, userID, err)
	}
	return nil
}

// ListUncredited returns deposits that have not yet been credited to a
// balance, whatever their confirmation count. A deposit that arrives already
// past the threshold is still picked up here.
func (r *DepositRepository) ListUncredited(ctx context.Context) ([]*models.Deposit, error) {
	query := `
		SELECT id, user_id, tx_hash, amount, confirmations, credited, created_at
		FROM deposits
		WHERE credited = FALSE
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unconfirmed deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*models.Deposit
	for rows.Next() {
		var d models.Deposit
		err := rows.Scan(&d.ID, &d.UserID, &d.TxHash, &d.Amount, &d.Confirmations, &d.Credited, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deposits: %w", err)
	}
	return deposits, nil
}

// UpdateConfirmations raises a deposit's confirmation count (it never goes
// down) and returns the stored row.
func (r *DepositRepository) UpdateConfirmations(ctx context.Context, depositID int64, confirmations int) (*models.Deposit, error) {
	query := `
		UPDATE deposits
		SET confirmations = GREATEST(confirmations, $2)
		WHERE id = $1
		RETURNING id, user_id, tx_hash, amount, confirmations, credited, created_at
	`

	var d models.Deposit
	err := r.q.QueryRow(ctx, query, depositID, confirmations).Scan(
		&d.ID, &d.UserID, &d.TxHash, &d.Amount, &d.Confirmations, &d.Credited, &d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update confirmations for deposit %d: %w", depositID, err)
	}
	return &d, nil
}

// MarkCredited flips the credited flag and reports whether this call was the
// one that flipped it. The rows-affected guard is what makes crediting a
// confirmed deposit exactly-once even when two tracking cycles race.
func (r *DepositRepository) MarkCredited(ctx context.Context, depositID int64) (bool, error) {
	query := `UPDATE deposits SET credited = TRUE WHERE id = $1 AND credited = FALSE`

	result, err := r.q.Exec(ctx, query, depositID)
	if err != nil {
		return false, fmt.Errorf("failed to mark deposit %d credited: %w", depositID, err)
	}
	return result.RowsAffected() == 1, nil
}

// EnqueueCompleted adds a deposit to the completed-deposit notification queue
func (r *DepositRepository) EnqueueCompleted(ctx context.Context, depositID, userID int64) error {
	query := `
		INSERT INTO completed_deposit_confirmations (deposit_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (deposit_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, depositID, userID); err != nil {
		return fmt.Errorf("failed to enqueue completed deposit %d: %w", depositID, err)
	}
	return nil
}

// ListCompleted returns the pending completed-deposit notifications joined
// with the deposit amount and the user's current balance.
func (r *DepositRepository) ListCompleted(ctx context.Context) ([]*models.CompletedDeposit, error) {
	query := `
		SELECT c.deposit_id, c.user_id, u.username, d.amount, u.balance
		FROM completed_deposit_confirmations c
		JOIN deposits d ON d.id = c.deposit_id
		JOIN users u ON u.id = c.user_id
		ORDER BY c.created_at
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed deposits: %w", err)
	}
	defer rows.Close()

	var completed []*models.CompletedDeposit
	for rows.Next() {
		var c models.CompletedDeposit
		err := rows.Scan(&c.DepositID, &c.UserID, &c.Username, &c.Amount, &c.Balance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completed deposit: %w", err)
		}
		completed = append(completed, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completed deposits: %w", err)
	}
	return completed, nil
}

// DeleteCompleted removes an entry from the notification queue once its
// notification has been delivered.
func (r *DepositRepository) DeleteCompleted(ctx context.Context, depositID int64) error {
	query := `DELETE FROM completed_deposit_confirmations WHERE deposit_id = $1`

	if _, err := r.q.Exec(ctx, query, depositID); err != nil {
		return fmt.Errorf("failed to delete completed deposit %d: %w", depositID, err)
	}
	return nil
}
