package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lbryio/lbry-social-tipbot/rates"
)

// sendPacing spaces out notification sends so a burst of confirmed deposits
// does not trip the platform's rate limiter.
const sendPacing = 2 * time.Second

// notifyService implements the NotifyService interface
type notifyService struct {
	deposits    DepositRepository // pool-backed
	notifier    Notifier
	howToUseURL string
}

// NewNotifyService creates a new notify service. deposits must be backed by
// the connection pool.
func NewNotifyService(deposits DepositRepository, notifier Notifier, howToUseURL string) NotifyService {
	return &notifyService{
		deposits:    deposits,
		notifier:    notifier,
		howToUseURL: howToUseURL,
	}
}

// ProcessCompletedDeposits drains the completed-deposit queue. Each entry is
// deleted only after its notification went out, so a failed send stays queued
// for the next cycle and a crash re-sends at most the in-flight entry.
func (s *notifyService) ProcessCompletedDeposits(ctx context.Context) error {
	completed, err := s.deposits.ListCompleted(ctx)
	if err != nil {
		return err
	}

	for i, c := range completed {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sendPacing):
			}
		}

		err := s.notifier.SendMessage(ctx, "ondeposit.completed", map[string]string{
			"amount":         rates.FormatCoin(c.Amount),
			"balance":        c.Balance.String(),
			"how_to_use_url": s.howToUseURL,
		}, "Deposit completed!", c.Username)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"deposit": c.DepositID,
				"user":    c.Username,
			}).Warn("Failed to send deposit notification, leaving queued")
			continue
		}

		if err := s.deposits.DeleteCompleted(ctx, c.DepositID); err != nil {
			return err
		}
	}
	return nil
}
