package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lbryio/lbry-social-tipbot/database"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// WithdrawalRepository implements the service.WithdrawalRepository
// interface. It also owns withdrawal attempts, the reconciliation keys
// written around the external transfer call.
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository backed by the pool
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

// Create inserts a withdrawal record and sets its id. Called only after the
// chain daemon has returned a transaction id.
func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (user_id, tx_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query, w.UserID, w.TxID, w.Amount).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal for user %d: %w", w.UserID, err)
	}
	return nil
}

// GetByTxID returns the withdrawal recorded for a chain transaction id, or
// nil if no withdrawal claims it.
func (r *WithdrawalRepository) GetByTxID(ctx context.Context, txID string) (*models.Withdrawal, error) {
	query := `
		SELECT id, user_id, tx_id, amount, created_at
		FROM withdrawals
		WHERE tx_id = $1
	`

	var w models.Withdrawal
	err := r.q.QueryRow(ctx, query, txID).Scan(&w.ID, &w.UserID, &w.TxID, &w.Amount, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get withdrawal by tx %s: %w", txID, err)
	}
	return &w, nil
}

// CreateAttempt records a withdrawal attempt before the external send is
// issued. Written outside the ledger transaction so that a crash or timeout
// mid-withdrawal leaves evidence for reconciliation.
func (r *WithdrawalRepository) CreateAttempt(ctx context.Context, a *models.WithdrawalAttempt) error {
	query := `
		INSERT INTO withdrawal_attempts (id, user_id, address, amount, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query, a.ID, a.UserID, a.Address, a.Amount, a.State).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal attempt %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAttemptState moves an attempt to a new state, optionally recording
// the chain transaction id.
func (r *WithdrawalRepository) UpdateAttemptState(ctx context.Context, attemptID string, state models.WithdrawalAttemptState, txID *string) error {
	query := `
		UPDATE withdrawal_attempts
		SET state = $2, tx_id = COALESCE($3, tx_id), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, attemptID, state, txID)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal attempt %s: %w", attemptID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal attempt %s not found", attemptID)
	}
	return nil
}

// ListUnresolvedAttempts returns attempts still pending or ambiguous.
// Reconciliation consumes this on startup.
func (r *WithdrawalRepository) ListUnresolvedAttempts(ctx context.Context) ([]*models.WithdrawalAttempt, error) {
	query := `
		SELECT id, user_id, address, amount, state, tx_id, created_at, updated_at
		FROM withdrawal_attempts
		WHERE state IN ('pending', 'ambiguous')
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.WithdrawalAttempt
	for rows.Next() {
		var a models.WithdrawalAttempt
		err := rows.Scan(&a.ID, &a.UserID, &a.Address, &a.Amount, &a.State, &a.TxID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawal attempts: %w", err)
	}
	return attempts, nil
}

// HasUnresolvedAttempts reports whether a user has attempts that have not
// reached a terminal state. Such users may not start new withdrawals until
// reconciliation resolves the old attempt.
func (r *WithdrawalRepository) HasUnresolvedAttempts(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM withdrawal_attempts
			WHERE user_id = $1 AND state IN ('pending', 'ambiguous')
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check unresolved attempts for user %d: %w", userID, err)
	}
	return exists, nil
}
