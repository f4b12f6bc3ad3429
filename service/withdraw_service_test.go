package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lbryio/lbry-social-tipbot/models"
)

const withdrawAddress = "bDestinationAddress"

func withdrawMessage() InboundMessage {
	return InboundMessage{
		Kind:       models.MessageKindPrivate,
		ExternalID: "t4_w1",
		Author:     "alice",
		Body:       "withdraw 10 " + withdrawAddress,
		CreatedAt:  time.Now(),
	}
}

type withdrawFixture struct {
	uow        *MockUnitOfWork
	factory    *MockUnitOfWorkFactory
	users      *MockUserRepository
	messages   *MockMessageRepository
	withdrawal *MockWithdrawalRepository
	publisher  *MockEventPublisher
	chain      *MockChainClient
	inbox      *MockInboxClient
	notifier   *MockNotifier
	svc        WithdrawService
}

func newWithdrawFixture() *withdrawFixture {
	f := &withdrawFixture{
		uow:        new(MockUnitOfWork),
		factory:    new(MockUnitOfWorkFactory),
		users:      new(MockUserRepository),
		messages:   new(MockMessageRepository),
		withdrawal: new(MockWithdrawalRepository),
		publisher:  new(MockEventPublisher),
		chain:      new(MockChainClient),
		inbox:      new(MockInboxClient),
		notifier:   new(MockNotifier),
	}
	f.uow.SetRepositories(f.users, f.messages, nil, nil, f.withdrawal)
	f.uow.SetEventBus(f.publisher)
	f.factory.On("Create").Return(f.uow)
	f.svc = NewWithdrawService(f.factory, f.withdrawal, f.chain, f.inbox, f.notifier, testHowToUseURL)
	return f
}

func TestWithdrawService_Withdraw_Success(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	amount := decimal.RequireFromString("10")
	user := &models.User{ID: 1, Username: "alice", Balance: decimal.RequireFromString("50")}

	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.users.On("GetByUsernameForUpdate", ctx, "alice").Return(user, nil)
	f.withdrawal.On("HasUnresolvedAttempts", ctx, int64(1)).Return(false, nil)
	f.withdrawal.On("CreateAttempt", ctx, mock.MatchedBy(func(a *models.WithdrawalAttempt) bool {
		return a.UserID == 1 && a.Address == withdrawAddress && a.State == models.AttemptStatePending && a.ID != ""
	})).Return(nil)
	f.users.On("DeductBalance", ctx, int64(1), amount).Return(nil)
	f.messages.On("Create", ctx, mock.MatchedBy(func(m *models.Message) bool {
		return m.ExternalID == "t4_w1" && m.AuthorID == 1
	})).Return(nil)
	f.chain.On("Send", ctx, withdrawAddress, amount).Return("txid123", nil)
	f.withdrawal.On("Create", ctx, mock.MatchedBy(func(w *models.Withdrawal) bool {
		return w.UserID == 1 && w.TxID == "txid123"
	})).Return(nil)
	f.withdrawal.On("UpdateAttemptState", ctx, mock.Anything, models.AttemptStateCompleted, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.AnythingOfType("events.WithdrawalCompletedEvent")).Return()
	f.inbox.On("MarkRead", ctx, "t4_w1").Return(nil)
	f.notifier.On("Reply", ctx, "onwithdraw", mock.MatchedBy(func(subs map[string]string) bool {
		return subs["txid"] == "txid123" && subs["address"] == withdrawAddress
	}), "t4_w1").Return(nil)

	err := f.svc.Withdraw(ctx, amount, withdrawAddress, withdrawMessage())

	assert.NoError(t, err)
	f.withdrawal.AssertExpectations(t)
	f.chain.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestWithdrawService_Withdraw_OwnDepositAddress(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	addr := withdrawAddress
	user := &models.User{ID: 1, Username: "alice", Balance: decimal.RequireFromString("50"), DepositAddress: &addr}

	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.users.On("GetByUsernameForUpdate", ctx, "alice").Return(user, nil)
	f.notifier.On("SendMessage", ctx, "onwithdraw.invalidaddress", mock.Anything, "Invalid address for withdrawal", "alice").Return(nil)
	f.inbox.On("MarkRead", ctx, "t4_w1").Return(nil)

	err := f.svc.Withdraw(ctx, decimal.RequireFromString("10"), withdrawAddress, withdrawMessage())

	assert.NoError(t, err)
	f.withdrawal.AssertNotCalled(t, "CreateAttempt")
	f.chain.AssertNotCalled(t, "Send")
	f.notifier.AssertExpectations(t)
}

func TestWithdrawService_Withdraw_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	user := &models.User{ID: 1, Username: "alice", Balance: decimal.RequireFromString("5")}

	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.users.On("GetByUsernameForUpdate", ctx, "alice").Return(user, nil)
	f.notifier.On("SendMessage", ctx, "onwithdraw.insufficientfunds", mock.MatchedBy(func(subs map[string]string) bool {
		return subs["balance"] == "5"
	}), "Insufficient funds for withdrawal", "alice").Return(nil)
	f.inbox.On("MarkRead", ctx, "t4_w1").Return(nil)

	err := f.svc.Withdraw(ctx, decimal.RequireFromString("10"), withdrawAddress, withdrawMessage())

	assert.NoError(t, err)
	f.uow.AssertNotCalled(t, "Commit")
	f.withdrawal.AssertNotCalled(t, "CreateAttempt")
	f.chain.AssertNotCalled(t, "Send")
}

func TestWithdrawService_Withdraw_BlockedByUnresolvedAttempt(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	user := &models.User{ID: 1, Username: "alice", Balance: decimal.RequireFromString("50")}

	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.users.On("GetByUsernameForUpdate", ctx, "alice").Return(user, nil)
	f.withdrawal.On("HasUnresolvedAttempts", ctx, int64(1)).Return(true, nil)

	err := f.svc.Withdraw(ctx, decimal.RequireFromString("10"), withdrawAddress, withdrawMessage())

	assert.ErrorIs(t, err, ErrWithdrawalBlocked)
	// The message stays unread so the next poll retries after reconciliation.
	f.inbox.AssertNotCalled(t, "MarkRead")
	f.withdrawal.AssertNotCalled(t, "CreateAttempt")
	f.chain.AssertNotCalled(t, "Send")
}

func TestWithdrawService_Withdraw_SendFailure(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	amount := decimal.RequireFromString("10")
	user := &models.User{ID: 1, Username: "alice", Balance: decimal.RequireFromString("50")}

	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.users.On("GetByUsernameForUpdate", ctx, "alice").Return(user, nil)
	f.withdrawal.On("HasUnresolvedAttempts", ctx, int64(1)).Return(false, nil)
	f.withdrawal.On("CreateAttempt", ctx, mock.Anything).Return(nil)
	f.users.On("DeductBalance", ctx, int64(1), amount).Return(nil)
	f.messages.On("Create", ctx, mock.Anything).Return(nil)
	f.chain.On("Send", ctx, withdrawAddress, amount).Return("", errors.New("daemon refused"))
	f.withdrawal.On("UpdateAttemptState", ctx, mock.Anything, models.AttemptStateFailed, (*string)(nil)).Return(nil)

	err := f.svc.Withdraw(ctx, amount, withdrawAddress, withdrawMessage())

	assert.Error(t, err)
	// Debit rolled back, nothing recorded, nothing confirmed to the user.
	f.withdrawal.AssertNotCalled(t, "Create")
	f.inbox.AssertNotCalled(t, "MarkRead")
	f.notifier.AssertNotCalled(t, "Reply")
	f.withdrawal.AssertExpectations(t)
}

func TestWithdrawService_Withdraw_AmbiguousTimeout(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	amount := decimal.RequireFromString("10")
	user := &models.User{ID: 1, Username: "alice", Balance: decimal.RequireFromString("50")}

	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.users.On("GetByUsernameForUpdate", ctx, "alice").Return(user, nil)
	f.withdrawal.On("HasUnresolvedAttempts", ctx, int64(1)).Return(false, nil)
	f.withdrawal.On("CreateAttempt", ctx, mock.Anything).Return(nil)
	f.users.On("DeductBalance", ctx, int64(1), amount).Return(nil)
	f.messages.On("Create", ctx, mock.Anything).Return(nil)
	f.chain.On("Send", ctx, withdrawAddress, amount).Return("", ErrAmbiguousOutcome)
	f.withdrawal.On("UpdateAttemptState", ctx, mock.Anything, models.AttemptStateAmbiguous, (*string)(nil)).Return(nil)

	err := f.svc.Withdraw(ctx, amount, withdrawAddress, withdrawMessage())

	assert.ErrorIs(t, err, ErrAmbiguousOutcome)
	f.withdrawal.AssertNotCalled(t, "Create")
	f.inbox.AssertNotCalled(t, "MarkRead")
	f.withdrawal.AssertExpectations(t)
}

func TestWithdrawService_Reconcile_NothingUnresolved(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	f.withdrawal.On("ListUnresolvedAttempts", ctx).Return([]*models.WithdrawalAttempt{}, nil)

	err := f.svc.Reconcile(ctx)

	assert.NoError(t, err)
	f.chain.AssertNotCalled(t, "ListRecentTransactions")
}

func TestWithdrawService_Reconcile_MatchedOnChain(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	amount := decimal.RequireFromString("10")
	attempt := &models.WithdrawalAttempt{
		ID:      "attempt-1",
		UserID:  1,
		Address: withdrawAddress,
		Amount:  amount,
		State:   models.AttemptStateAmbiguous,
	}

	f.withdrawal.On("ListUnresolvedAttempts", ctx).Return([]*models.WithdrawalAttempt{attempt}, nil)
	f.chain.On("ListRecentTransactions", ctx, 1000).Return([]ChainTransaction{
		{Address: withdrawAddress, TxID: "txid-found", Amount: amount.Neg(), Confirmations: 2},
	}, nil)
	f.withdrawal.On("GetByTxID", ctx, "txid-found").Return(nil, nil)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.users.On("DeductBalance", ctx, int64(1), amount).Return(nil)
	f.withdrawal.On("Create", ctx, mock.MatchedBy(func(w *models.Withdrawal) bool {
		return w.TxID == "txid-found" && w.UserID == 1
	})).Return(nil)
	f.withdrawal.On("UpdateAttemptState", ctx, "attempt-1", models.AttemptStateCompleted, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.AnythingOfType("events.WithdrawalCompletedEvent")).Return()

	err := f.svc.Reconcile(ctx)

	assert.NoError(t, err)
	f.withdrawal.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestWithdrawService_Reconcile_UnmatchedFails(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	attempt := &models.WithdrawalAttempt{
		ID:      "attempt-2",
		UserID:  1,
		Address: withdrawAddress,
		Amount:  decimal.RequireFromString("10"),
		State:   models.AttemptStatePending,
	}

	f.withdrawal.On("ListUnresolvedAttempts", ctx).Return([]*models.WithdrawalAttempt{attempt}, nil)
	f.chain.On("ListRecentTransactions", ctx, 1000).Return([]ChainTransaction{
		// Different address, same amount: not ours.
		{Address: "bSomeoneElse", TxID: "txid-other", Amount: decimal.RequireFromString("-10")},
	}, nil)
	f.withdrawal.On("UpdateAttemptState", ctx, "attempt-2", models.AttemptStateFailed, (*string)(nil)).Return(nil)

	err := f.svc.Reconcile(ctx)

	assert.NoError(t, err)
	f.users.AssertNotCalled(t, "DeductBalance")
	f.withdrawal.AssertNotCalled(t, "Create")
	f.withdrawal.AssertExpectations(t)
}

func TestWithdrawService_Reconcile_SkipsClaimedTransaction(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawFixture()

	amount := decimal.RequireFromString("10")
	attempt := &models.WithdrawalAttempt{
		ID:      "attempt-3",
		UserID:  1,
		Address: withdrawAddress,
		Amount:  amount,
		State:   models.AttemptStateAmbiguous,
	}

	f.withdrawal.On("ListUnresolvedAttempts", ctx).Return([]*models.WithdrawalAttempt{attempt}, nil)
	f.chain.On("ListRecentTransactions", ctx, 1000).Return([]ChainTransaction{
		{Address: withdrawAddress, TxID: "txid-claimed", Amount: amount.Neg()},
	}, nil)
	// The matching transaction already belongs to a recorded withdrawal.
	f.withdrawal.On("GetByTxID", ctx, "txid-claimed").Return(&models.Withdrawal{ID: 5, TxID: "txid-claimed"}, nil)
	f.withdrawal.On("UpdateAttemptState", ctx, "attempt-3", models.AttemptStateFailed, (*string)(nil)).Return(nil)

	err := f.svc.Reconcile(ctx)

	assert.NoError(t, err)
	f.users.AssertNotCalled(t, "DeductBalance")
	f.withdrawal.AssertExpectations(t)
}
