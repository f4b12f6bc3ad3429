package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbryio/lbry-social-tipbot/repository/testutil"
)

func TestDepositRepository_Upsert(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewDepositRepository(testDB.DB)
	ctx := context.Background()

	user, err := users.Create(ctx, "alice")
	require.NoError(t, err)

	amount := decimal.RequireFromString("7.5")

	require.NoError(t, repo.Upsert(ctx, user.ID, "tx1", amount, 1))

	t.Run("initial row visible as uncredited", func(t *testing.T) {
		deposits, err := repo.ListUncredited(ctx)
		require.NoError(t, err)
		require.Len(t, deposits, 1)
		assert.Equal(t, 1, deposits[0].Confirmations)
		assert.False(t, deposits[0].Credited)
	})

	t.Run("re-upsert raises confirmations", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, user.ID, "tx1", amount, 2))

		deposits, err := repo.ListUncredited(ctx)
		require.NoError(t, err)
		require.Len(t, deposits, 1)
		assert.Equal(t, 2, deposits[0].Confirmations)
	})

	t.Run("stale snapshot cannot regress confirmations", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, user.ID, "tx1", amount, 0))

		deposits, err := repo.ListUncredited(ctx)
		require.NoError(t, err)
		require.Len(t, deposits, 1)
		assert.Equal(t, 2, deposits[0].Confirmations)
	})

	t.Run("same hash for another user is a separate deposit", func(t *testing.T) {
		other, err := users.Create(ctx, "bob")
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, other.ID, "tx1", amount, 1))

		deposits, err := repo.ListUncredited(ctx)
		require.NoError(t, err)
		assert.Len(t, deposits, 2)
	})
}

func TestDepositRepository_MarkCredited(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewDepositRepository(testDB.DB)
	ctx := context.Background()

	user, err := users.Create(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, user.ID, "tx1", decimal.RequireFromString("1"), 3))

	deposits, err := repo.ListUncredited(ctx)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	depositID := deposits[0].ID

	t.Run("first flip reports true", func(t *testing.T) {
		flipped, err := repo.MarkCredited(ctx, depositID)
		require.NoError(t, err)
		assert.True(t, flipped)
	})

	t.Run("second flip reports false", func(t *testing.T) {
		flipped, err := repo.MarkCredited(ctx, depositID)
		require.NoError(t, err)
		assert.False(t, flipped)
	})

	t.Run("credited deposit leaves the uncredited list", func(t *testing.T) {
		remaining, err := repo.ListUncredited(ctx)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})
}

func TestDepositRepository_CompletedQueue(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewDepositRepository(testDB.DB)
	ctx := context.Background()

	user, err := users.Create(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, users.AddBalance(ctx, user.ID, decimal.RequireFromString("7.5")))
	require.NoError(t, repo.Upsert(ctx, user.ID, "tx1", decimal.RequireFromString("7.5"), 3))

	deposits, err := repo.ListUncredited(ctx)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	depositID := deposits[0].ID

	require.NoError(t, repo.EnqueueCompleted(ctx, depositID, user.ID))

	t.Run("queue entry joins amount and balance", func(t *testing.T) {
		completed, err := repo.ListCompleted(ctx)
		require.NoError(t, err)
		require.Len(t, completed, 1)

		assert.Equal(t, depositID, completed[0].DepositID)
		assert.Equal(t, "alice", completed[0].Username)
		assert.True(t, completed[0].Amount.Equal(decimal.RequireFromString("7.5")))
		assert.True(t, completed[0].Balance.Equal(decimal.RequireFromString("7.5")))
	})

	t.Run("enqueue is idempotent", func(t *testing.T) {
		require.NoError(t, repo.EnqueueCompleted(ctx, depositID, user.ID))

		completed, err := repo.ListCompleted(ctx)
		require.NoError(t, err)
		assert.Len(t, completed, 1)
	})

	t.Run("delete drains the queue", func(t *testing.T) {
		require.NoError(t, repo.DeleteCompleted(ctx, depositID))

		completed, err := repo.ListCompleted(ctx)
		require.NoError(t, err)
		assert.Empty(t, completed)
	})
}
