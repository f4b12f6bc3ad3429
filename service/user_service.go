package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// userService implements the UserService interface
type userService struct {
	uowFactory UnitOfWorkFactory
	chain      ChainClient
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, chain ChainClient) UserService {
	return &userService{
		uowFactory: uowFactory,
		chain:      chain,
	}
}

// getOrCreateUser resolves a username to a user row inside an open unit of
// work, creating the row lazily on first reference. The lookup takes a row
// lock so later balance mutations in the same unit serialize with other
// writers.
func getOrCreateUser(ctx context.Context, uow UnitOfWork, username string) (*models.User, error) {
	user, err := uow.UserRepository().GetByUsernameForUpdate(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	if user != nil {
		return user, nil
	}

	user, err = uow.UserRepository().Create(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}

	uow.EventBus().Publish(events.UserCreatedEvent{
		UserID:   user.ID,
		Username: user.Username,
	})
	return user, nil
}

// GetOrCreateUser retrieves an existing user or lazily creates one
func (s *userService) GetOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := getOrCreateUser(ctx, uow, username)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// Balance returns the user's current balance, creating the user if needed
func (s *userService) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	user, err := s.GetOrCreateUser(ctx, username)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// DepositAddress returns the user's deposit address, asking the daemon for a
// fresh one and persisting it on first request.
func (s *userService) DepositAddress(ctx context.Context, username string) (string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := getOrCreateUser(ctx, uow, username)
	if err != nil {
		return "", err
	}

	if user.HasDepositAddress() {
		if err := uow.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit transaction: %w", err)
		}
		return *user.DepositAddress, nil
	}

	// The row lock from getOrCreateUser is held across the daemon call, so
	// two concurrent requests cannot each assign a different address.
	address, err := s.chain.NewAddress(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to generate deposit address: %w", err)
	}

	if err := uow.UserRepository().SetDepositAddress(ctx, user.ID, address); err != nil {
		return "", err
	}

	if err := uow.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return address, nil
}
