package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/repository/testutil"
)

func TestUnitOfWork_RollbackDiscardsWrites(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	eventBus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user, err := uow.UserRepository().Create(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, uow.UserRepository().AddBalance(ctx, user.ID, decimal.RequireFromString("10")))

	require.NoError(t, uow.Rollback())

	// Nothing from the unit survived.
	fresh, err := NewUserRepository(testDB.DB).GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, fresh)
}

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	eventBus := events.NewBus()

	var mu sync.Mutex
	var received []events.Event
	done := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, e events.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		done <- struct{}{}
	})

	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user, err := uow.UserRepository().Create(ctx, "alice")
	require.NoError(t, err)

	uow.EventBus().Publish(events.UserCreatedEvent{UserID: user.ID, Username: user.Username})

	// Nothing emitted before commit.
	mu.Lock()
	assert.Empty(t, received)
	mu.Unlock()

	require.NoError(t, uow.Commit())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not emitted after commit")
	}

	mu.Lock()
	require.Len(t, received, 1)
	created := received[0].(events.UserCreatedEvent)
	assert.Equal(t, user.ID, created.UserID)
	mu.Unlock()
}

func TestUnitOfWork_RollbackDiscardsEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	eventBus := events.NewBus()

	fired := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, e events.Event) {
		fired <- struct{}{}
	})

	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user, err := uow.UserRepository().Create(ctx, "alice")
	require.NoError(t, err)
	uow.EventBus().Publish(events.UserCreatedEvent{UserID: user.ID, Username: user.Username})

	require.NoError(t, uow.Rollback())

	select {
	case <-fired:
		t.Fatal("event emitted despite rollback")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUnitOfWork_TipsCommitAtomically(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	eventBus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	sender, err := uow.UserRepository().Create(ctx, "alice")
	require.NoError(t, err)
	recipient, err := uow.UserRepository().Create(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, uow.UserRepository().AddBalance(ctx, sender.ID, decimal.RequireFromString("100")))

	msg := testutil.CreateTestMessage(sender.ID, "t1_tip")
	require.NoError(t, uow.MessageRepository().Create(ctx, msg))

	tip := testutil.CreateTestTip(msg.ID, sender.ID, recipient.ID, "25")
	require.NoError(t, uow.TipRepository().Create(ctx, tip))
	require.NoError(t, uow.UserRepository().DeductBalance(ctx, sender.ID, tip.Amount))
	require.NoError(t, uow.UserRepository().AddBalance(ctx, recipient.ID, tip.Amount))

	require.NoError(t, uow.Commit())

	users := NewUserRepository(testDB.DB)
	freshSender, err := users.GetByID(ctx, sender.ID)
	require.NoError(t, err)
	freshRecipient, err := users.GetByID(ctx, recipient.ID)
	require.NoError(t, err)

	assert.True(t, freshSender.Balance.Equal(decimal.RequireFromString("75")))
	assert.True(t, freshRecipient.Balance.Equal(decimal.RequireFromString("25")))

	witness, err := NewMessageRepository(testDB.DB).GetByExternalID(ctx, "t1_tip")
	require.NoError(t, err)
	require.NotNil(t, witness)
}
