package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsernameForUpdate(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByDepositAddress(ctx context.Context, address string) (*models.User, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) SetDepositAddress(ctx context.Context, userID int64, address string) error {
	args := m.Called(ctx, userID, address)
	return args.Error(0)
}

func (m *MockUserRepository) AddBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockUserRepository) DeductBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Message, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockTipRepository is a mock implementation of TipRepository
type MockTipRepository struct {
	mock.Mock
}

func (m *MockTipRepository) Create(ctx context.Context, tip *models.Tip) error {
	args := m.Called(ctx, tip)
	return args.Error(0)
}

// MockDepositRepository is a mock implementation of DepositRepository
type MockDepositRepository struct {
	mock.Mock
}

func (m *MockDepositRepository) Upsert(ctx context.Context, userID int64, txHash string, amount decimal.Decimal, confirmations int) error {
	args := m.Called(ctx, userID, txHash, amount, confirmations)
	return args.Error(0)
}

func (m *MockDepositRepository) ListUncredited(ctx context.Context) ([]*models.Deposit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) UpdateConfirmations(ctx context.Context, depositID int64, confirmations int) (*models.Deposit, error) {
	args := m.Called(ctx, depositID, confirmations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) MarkCredited(ctx context.Context, depositID int64) (bool, error) {
	args := m.Called(ctx, depositID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDepositRepository) EnqueueCompleted(ctx context.Context, depositID, userID int64) error {
	args := m.Called(ctx, depositID, userID)
	return args.Error(0)
}

func (m *MockDepositRepository) ListCompleted(ctx context.Context) ([]*models.CompletedDeposit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CompletedDeposit), args.Error(1)
}

func (m *MockDepositRepository) DeleteCompleted(ctx context.Context, depositID int64) error {
	args := m.Called(ctx, depositID)
	return args.Error(0)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByTxID(ctx context.Context, txID string) (*models.Withdrawal, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) CreateAttempt(ctx context.Context, a *models.WithdrawalAttempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) UpdateAttemptState(ctx context.Context, attemptID string, state models.WithdrawalAttemptState, txID *string) error {
	args := m.Called(ctx, attemptID, state, txID)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) ListUnresolvedAttempts(ctx context.Context) ([]*models.WithdrawalAttempt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WithdrawalAttempt), args.Error(1)
}

func (m *MockWithdrawalRepository) HasUnresolvedAttempts(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repositories are
// injected with SetRepositories rather than mocked per accessor.
type MockUnitOfWork struct {
	mock.Mock
	userRepo       UserRepository
	messageRepo    MessageRepository
	tipRepo        TipRepository
	depositRepo    DepositRepository
	withdrawalRepo WithdrawalRepository
	eventBus       EventPublisher
}

// SetRepositories configures the repositories returned by the accessors.
// Pass nil for repositories the test does not touch.
func (m *MockUnitOfWork) SetRepositories(user UserRepository, message MessageRepository, tip TipRepository, deposit DepositRepository, withdrawal WithdrawalRepository) {
	m.userRepo = user
	m.messageRepo = message
	m.tipRepo = tip
	m.depositRepo = deposit
	m.withdrawalRepo = withdrawal
}

// SetEventBus configures the publisher returned by EventBus.
func (m *MockUnitOfWork) SetEventBus(bus EventPublisher) {
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository             { return m.userRepo }
func (m *MockUnitOfWork) MessageRepository() MessageRepository       { return m.messageRepo }
func (m *MockUnitOfWork) TipRepository() TipRepository               { return m.tipRepo }
func (m *MockUnitOfWork) DepositRepository() DepositRepository       { return m.depositRepo }
func (m *MockUnitOfWork) WithdrawalRepository() WithdrawalRepository { return m.withdrawalRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                   { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockInboxClient is a mock implementation of InboxClient
type MockInboxClient struct {
	mock.Mock
}

func (m *MockInboxClient) UnreadMessages(ctx context.Context) ([]InboundMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]InboundMessage), args.Error(1)
}

func (m *MockInboxClient) MarkRead(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

func (m *MockInboxClient) MessageAuthor(ctx context.Context, externalID string) (string, error) {
	args := m.Called(ctx, externalID)
	return args.String(0), args.Error(1)
}

func (m *MockInboxClient) Gild(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendMessage(ctx context.Context, template string, subs map[string]string, subject, recipient string) error {
	args := m.Called(ctx, template, subs, subject, recipient)
	return args.Error(0)
}

func (m *MockNotifier) Reply(ctx context.Context, template string, subs map[string]string, sourceExternalID string) error {
	args := m.Called(ctx, template, subs, sourceExternalID)
	return args.Error(0)
}

// MockChainClient is a mock implementation of ChainClient
type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) NewAddress(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) Send(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, address, amount)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) TransactionConfirmations(ctx context.Context, txID string) (int, error) {
	args := m.Called(ctx, txID)
	return args.Int(0), args.Error(1)
}

func (m *MockChainClient) ListRecentTransactions(ctx context.Context, limit int) ([]ChainTransaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ChainTransaction), args.Error(1)
}

// MockRateClient is a mock implementation of RateClient
type MockRateClient struct {
	mock.Mock
}

func (m *MockRateClient) GetRate(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserService) DepositAddress(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

// MockTransferService is a mock implementation of TransferService
type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) Transfer(ctx context.Context, req TransferRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockWithdrawService is a mock implementation of WithdrawService
type MockWithdrawService struct {
	mock.Mock
}

func (m *MockWithdrawService) Withdraw(ctx context.Context, amount decimal.Decimal, address string, msg InboundMessage) error {
	args := m.Called(ctx, amount, address, msg)
	return args.Error(0)
}

func (m *MockWithdrawService) Reconcile(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
