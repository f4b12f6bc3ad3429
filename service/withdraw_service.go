package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/models"
	"github.com/lbryio/lbry-social-tipbot/rates"
)

// withdrawService implements the WithdrawService interface.
//
// A withdrawal couples a local debit to an irreversible chain transfer, so
// the dangerous window around the send call is bracketed by a withdrawal
// attempt row committed outside the ledger transaction. Whatever happens
// between writing that row and resolving it, Reconcile can decide from the
// chain node whether the coins actually moved.
type withdrawService struct {
	uowFactory  UnitOfWorkFactory
	attempts    WithdrawalRepository // pool-backed, commits independently of any unit of work
	chain       ChainClient
	inbox       InboxClient
	notifier    Notifier
	howToUseURL string
}

// NewWithdrawService creates a new withdraw service. attempts must be backed
// by the connection pool, not a transaction.
func NewWithdrawService(uowFactory UnitOfWorkFactory, attempts WithdrawalRepository, chain ChainClient, inbox InboxClient, notifier Notifier, howToUseURL string) WithdrawService {
	return &withdrawService{
		uowFactory:  uowFactory,
		attempts:    attempts,
		chain:       chain,
		inbox:       inbox,
		notifier:    notifier,
		howToUseURL: howToUseURL,
	}
}

// Withdraw debits the user and issues the chain transfer as one unit.
func (s *withdrawService) Withdraw(ctx context.Context, amount decimal.Decimal, address string, msg InboundMessage) error {
	attempt, err := s.prepare(ctx, amount, address, msg)
	if err != nil || attempt == nil {
		return err
	}
	return s.execute(ctx, attempt, msg)
}

// prepare validates the request under a row lock and, if it passes, commits
// the pending attempt row. Returns a nil attempt when the request was
// rejected and acknowledged.
func (s *withdrawService) prepare(ctx context.Context, amount decimal.Decimal, address string, msg InboundMessage) (*models.WithdrawalAttempt, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := getOrCreateUser(ctx, uow, msg.Author)
	if err != nil {
		return nil, err
	}

	if user.HasDepositAddress() && *user.DepositAddress == address {
		// Withdrawing to the bot's own deposit address would orbit the coins
		// straight back. Treat it as an invalid address.
		err := s.notifier.SendMessage(ctx, "onwithdraw.invalidaddress", map[string]string{
			"how_to_use_url": s.howToUseURL,
		}, "Invalid address for withdrawal", msg.Author)
		if err != nil {
			return nil, fmt.Errorf("failed to notify %s of invalid address: %w", msg.Author, err)
		}
		return nil, s.inbox.MarkRead(ctx, msg.ExternalID)
	}

	if user.Balance.LessThan(amount) {
		return nil, s.rejectInsufficient(ctx, user.Balance.String(), amount, msg)
	}

	blocked, err := uow.WithdrawalRepository().HasUnresolvedAttempts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		// Leave the message unread. Once reconciliation resolves the earlier
		// attempt the next poll picks it up again.
		return nil, fmt.Errorf("user %s: %w", msg.Author, ErrWithdrawalBlocked)
	}

	attempt := &models.WithdrawalAttempt{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		Address: address,
		Amount:  amount,
		State:   models.AttemptStatePending,
	}
	if err := uow.WithdrawalRepository().CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal attempt: %w", err)
	}
	return attempt, nil
}

// execute performs the debit and the chain send under one unit of work. The
// attempt row is already committed, so every exit path here is recoverable:
// a definite send failure rolls the debit back and fails the attempt, a
// timeout leaves it ambiguous for reconciliation, and a crash before commit
// is indistinguishable from a timeout and handled the same way.
func (s *withdrawService) execute(ctx context.Context, attempt *models.WithdrawalAttempt, msg InboundMessage) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByUsernameForUpdate(ctx, msg.Author)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s vanished between attempts", msg.Author)
	}

	if err := uow.UserRepository().DeductBalance(ctx, user.ID, attempt.Amount); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			// Balance moved between validation and debit. Nothing was sent.
			uow.Rollback()
			if failErr := s.attempts.UpdateAttemptState(ctx, attempt.ID, models.AttemptStateFailed, nil); failErr != nil {
				return failErr
			}
			return s.rejectInsufficient(ctx, user.Balance.String(), attempt.Amount, msg)
		}
		return err
	}

	auditMsg := &models.Message{
		AuthorID:         user.ID,
		Kind:             msg.Kind,
		ExternalID:       msg.ExternalID,
		ParentExternalID: msg.ParentExternalID,
		Subreddit:        msg.Subreddit,
		Body:             msg.Body,
		Context:          msg.Context,
		ExternalCreated:  msg.CreatedAt,
	}
	if err := uow.MessageRepository().Create(ctx, auditMsg); err != nil {
		return err
	}

	txID, err := s.chain.Send(ctx, attempt.Address, attempt.Amount)
	if err != nil {
		uow.Rollback()
		state := models.AttemptStateFailed
		if errors.Is(err, ErrAmbiguousOutcome) {
			// The daemon may or may not have broadcast the transaction. The
			// user stays blocked until reconciliation settles it.
			state = models.AttemptStateAmbiguous
		}
		if stateErr := s.attempts.UpdateAttemptState(ctx, attempt.ID, state, nil); stateErr != nil {
			log.WithError(stateErr).WithField("attempt", attempt.ID).
				Error("Failed to record withdrawal attempt state after send failure")
		}
		return fmt.Errorf("failed to send %s to %s: %w", attempt.Amount.String(), attempt.Address, err)
	}

	withdrawal := &models.Withdrawal{
		UserID: user.ID,
		TxID:   txID,
		Amount: attempt.Amount,
	}
	if err := uow.WithdrawalRepository().Create(ctx, withdrawal); err != nil {
		return err
	}
	if err := uow.WithdrawalRepository().UpdateAttemptState(ctx, attempt.ID, models.AttemptStateCompleted, &txID); err != nil {
		return err
	}

	uow.EventBus().Publish(events.WithdrawalCompletedEvent{
		WithdrawalID: withdrawal.ID,
		UserID:       user.ID,
		TxID:         txID,
		Amount:       attempt.Amount,
	})

	if err := uow.Commit(); err != nil {
		// The send went through but the debit did not commit. The attempt row
		// is still pending, so reconciliation will re-apply the debit.
		return fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	log.WithFields(log.Fields{
		"user":   user.Username,
		"amount": attempt.Amount.String(),
		"txid":   txID,
	}).Info("Withdrawal committed")

	// Commit first, confirm after. A redelivered message finds the audit row
	// and is re-acknowledged without sending again.
	if err := s.inbox.MarkRead(ctx, msg.ExternalID); err != nil {
		return fmt.Errorf("failed to mark %s read: %w", msg.ExternalID, err)
	}
	err = s.notifier.Reply(ctx, "onwithdraw", map[string]string{
		"amount":         rates.FormatCoin(attempt.Amount),
		"address":        attempt.Address,
		"txid":           txID,
		"how_to_use_url": s.howToUseURL,
	}, msg.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to reply to %s: %w", msg.ExternalID, err)
	}
	return nil
}

func (s *withdrawService) rejectInsufficient(ctx context.Context, balance string, amount decimal.Decimal, msg InboundMessage) error {
	err := s.notifier.SendMessage(ctx, "onwithdraw.insufficientfunds", map[string]string{
		"amount":         rates.FormatCoin(amount),
		"balance":        balance,
		"how_to_use_url": s.howToUseURL,
	}, "Insufficient funds for withdrawal", msg.Author)
	if err != nil {
		return fmt.Errorf("failed to notify %s of insufficient funds: %w", msg.Author, err)
	}
	return s.inbox.MarkRead(ctx, msg.ExternalID)
}

// Reconcile resolves unresolved withdrawal attempts against the chain node.
// It runs on startup before the first inbox poll, so no new withdrawal can
// race a still-unsettled one.
func (s *withdrawService) Reconcile(ctx context.Context) error {
	attempts, err := s.attempts.ListUnresolvedAttempts(ctx)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		return nil
	}

	log.WithField("count", len(attempts)).Info("Reconciling unresolved withdrawal attempts")

	txs, err := s.chain.ListRecentTransactions(ctx, 1000)
	if err != nil {
		return fmt.Errorf("failed to list chain transactions: %w", err)
	}

	for _, attempt := range attempts {
		txID, err := s.matchAttempt(ctx, attempt, txs)
		if err != nil {
			return err
		}
		if txID == "" {
			// Nothing on the chain matches: the send never took effect.
			if err := s.attempts.UpdateAttemptState(ctx, attempt.ID, models.AttemptStateFailed, nil); err != nil {
				return err
			}
			log.WithField("attempt", attempt.ID).Info("Withdrawal attempt reconciled as failed")
			continue
		}
		if err := s.settleAttempt(ctx, attempt, txID); err != nil {
			return err
		}
	}
	return nil
}

// matchAttempt looks for an unclaimed outgoing chain transaction matching the
// attempt's address and amount. Outgoing entries list negative amounts.
func (s *withdrawService) matchAttempt(ctx context.Context, attempt *models.WithdrawalAttempt, txs []ChainTransaction) (string, error) {
	for _, tx := range txs {
		if tx.Address != attempt.Address || !tx.Amount.Neg().Equal(attempt.Amount) {
			continue
		}
		claimed, err := s.attempts.GetByTxID(ctx, tx.TxID)
		if err != nil {
			return "", err
		}
		if claimed != nil {
			continue
		}
		return tx.TxID, nil
	}
	return "", nil
}

// settleAttempt applies the debit that the interrupted withdrawal never
// committed and records the withdrawal against its chain transaction.
func (s *withdrawService) settleAttempt(ctx context.Context, attempt *models.WithdrawalAttempt, txID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.UserRepository().DeductBalance(ctx, attempt.UserID, attempt.Amount); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			// The coins left but the user cannot cover the debit anymore.
			// Keep the attempt unresolved and the user blocked until an
			// operator sorts it out.
			log.WithFields(log.Fields{
				"attempt": attempt.ID,
				"user":    attempt.UserID,
				"txid":    txID,
			}).Error("Reconciled withdrawal cannot be debited, leaving attempt unresolved")
			return nil
		}
		return err
	}

	withdrawal := &models.Withdrawal{
		UserID: attempt.UserID,
		TxID:   txID,
		Amount: attempt.Amount,
	}
	if err := uow.WithdrawalRepository().Create(ctx, withdrawal); err != nil {
		return err
	}
	if err := uow.WithdrawalRepository().UpdateAttemptState(ctx, attempt.ID, models.AttemptStateCompleted, &txID); err != nil {
		return err
	}

	uow.EventBus().Publish(events.WithdrawalCompletedEvent{
		WithdrawalID: withdrawal.ID,
		UserID:       attempt.UserID,
		TxID:         txID,
		Amount:       attempt.Amount,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconciled withdrawal: %w", err)
	}

	log.WithFields(log.Fields{
		"attempt": attempt.ID,
		"txid":    txID,
	}).Info("Withdrawal attempt reconciled as completed")
	return nil
}
