package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lbryio/lbry-social-tipbot/models"
)

func TestNotifyService_ProcessCompletedDeposits(t *testing.T) {
	ctx := context.Background()

	mockDeposits := new(MockDepositRepository)
	mockNotifier := new(MockNotifier)

	svc := NewNotifyService(mockDeposits, mockNotifier, testHowToUseURL)

	completed := []*models.CompletedDeposit{
		{DepositID: 1, UserID: 10, Username: "alice", Amount: decimal.RequireFromString("7.5"), Balance: decimal.RequireFromString("7.5")},
	}

	mockDeposits.On("ListCompleted", ctx).Return(completed, nil)
	mockNotifier.On("SendMessage", ctx, "ondeposit.completed", mock.MatchedBy(func(subs map[string]string) bool {
		return subs["amount"] == "7.50000000" && subs["balance"] == "7.5"
	}), "Deposit completed!", "alice").Return(nil)
	mockDeposits.On("DeleteCompleted", ctx, int64(1)).Return(nil)

	err := svc.ProcessCompletedDeposits(ctx)

	assert.NoError(t, err)
	mockDeposits.AssertExpectations(t)
	mockNotifier.AssertExpectations(t)
}

func TestNotifyService_ProcessCompletedDeposits_SendFailureLeavesQueued(t *testing.T) {
	ctx := context.Background()

	mockDeposits := new(MockDepositRepository)
	mockNotifier := new(MockNotifier)

	svc := NewNotifyService(mockDeposits, mockNotifier, testHowToUseURL)

	completed := []*models.CompletedDeposit{
		{DepositID: 1, UserID: 10, Username: "alice", Amount: decimal.RequireFromString("1"), Balance: decimal.RequireFromString("1")},
	}

	mockDeposits.On("ListCompleted", ctx).Return(completed, nil)
	mockNotifier.On("SendMessage", ctx, "ondeposit.completed", mock.Anything, "Deposit completed!", "alice").Return(ErrRateLimited)

	err := svc.ProcessCompletedDeposits(ctx)

	assert.NoError(t, err)
	// The entry survives for the next cycle.
	mockDeposits.AssertNotCalled(t, "DeleteCompleted")
}

func TestNotifyService_ProcessCompletedDeposits_Empty(t *testing.T) {
	ctx := context.Background()

	mockDeposits := new(MockDepositRepository)
	mockNotifier := new(MockNotifier)

	svc := NewNotifyService(mockDeposits, mockNotifier, testHowToUseURL)

	mockDeposits.On("ListCompleted", ctx).Return([]*models.CompletedDeposit{}, nil)

	err := svc.ProcessCompletedDeposits(ctx)

	assert.NoError(t, err)
	mockNotifier.AssertNotCalled(t, "SendMessage")
}
