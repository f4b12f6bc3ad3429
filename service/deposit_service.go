package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/models"
)

// depositService implements the DepositService interface
type depositService struct {
	uowFactory UnitOfWorkFactory
	users      UserRepository    // pool-backed
	deposits   DepositRepository // pool-backed
	chain      ChainClient
	threshold  int
	listLimit  int
}

// NewDepositService creates a new deposit service. users and deposits must be
// backed by the connection pool.
func NewDepositService(uowFactory UnitOfWorkFactory, users UserRepository, deposits DepositRepository, chain ChainClient, threshold int) DepositService {
	return &depositService{
		uowFactory: uowFactory,
		users:      users,
		deposits:   deposits,
		chain:      chain,
		threshold:  threshold,
		listLimit:  1000,
	}
}

// DiscoverDeposits scans the daemon's recent transactions for incoming coins
// to known deposit addresses and upserts a deposit row for each. One bad
// entry never aborts the scan.
func (s *depositService) DiscoverDeposits(ctx context.Context) error {
	txs, err := s.chain.ListRecentTransactions(ctx, s.listLimit)
	if err != nil {
		return fmt.Errorf("failed to list chain transactions: %w", err)
	}

	for _, tx := range txs {
		if !tx.Amount.IsPositive() {
			// Outgoing or zero-value entries are not deposits.
			continue
		}

		user, err := s.users.GetByDepositAddress(ctx, tx.Address)
		if err != nil {
			return err
		}
		if user == nil {
			log.WithFields(log.Fields{
				"address": tx.Address,
				"txid":    tx.TxID,
			}).WithError(ErrUnknownDepositAddress).Warn("Skipping deposit")
			continue
		}

		if err := s.deposits.Upsert(ctx, user.ID, tx.TxID, tx.Amount, tx.Confirmations); err != nil {
			return err
		}
	}
	return nil
}

// PromotePendingDeposits re-queries confirmation counts for uncredited
// deposits and credits those that have crossed the threshold. The credited
// flag flip is the exactly-once guard: two overlapping cycles can both see a
// deposit cross, but only one flips the flag, and only the flipper credits.
func (s *depositService) PromotePendingDeposits(ctx context.Context) error {
	pending, err := s.deposits.ListUncredited(ctx)
	if err != nil {
		return err
	}

	for _, deposit := range pending {
		confirmations, err := s.chain.TransactionConfirmations(ctx, deposit.TxHash)
		if err != nil {
			log.WithError(err).WithField("txHash", deposit.TxHash).
				Warn("Failed to query confirmations, will retry next cycle")
			continue
		}

		if err := s.promote(ctx, deposit, confirmations); err != nil {
			return err
		}
	}
	return nil
}

func (s *depositService) promote(ctx context.Context, deposit *models.Deposit, confirmations int) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	updated, err := uow.DepositRepository().UpdateConfirmations(ctx, deposit.ID, confirmations)
	if err != nil {
		return err
	}

	if updated.Confirmations < s.threshold {
		return uow.Commit()
	}

	flipped, err := uow.DepositRepository().MarkCredited(ctx, deposit.ID)
	if err != nil {
		return err
	}
	if !flipped {
		// Another cycle already credited this deposit.
		return uow.Commit()
	}

	if err := uow.UserRepository().AddBalance(ctx, deposit.UserID, deposit.Amount); err != nil {
		return err
	}
	if err := uow.DepositRepository().EnqueueCompleted(ctx, deposit.ID, deposit.UserID); err != nil {
		return err
	}

	uow.EventBus().Publish(events.DepositConfirmedEvent{
		DepositID: deposit.ID,
		UserID:    deposit.UserID,
		TxHash:    deposit.TxHash,
		Amount:    deposit.Amount,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit deposit credit: %w", err)
	}

	log.WithFields(log.Fields{
		"deposit": deposit.ID,
		"user":    deposit.UserID,
		"amount":  deposit.Amount.String(),
	}).Info("Deposit credited")
	return nil
}
