package service

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/models"
	"github.com/lbryio/lbry-social-tipbot/rates"
)

// transferService implements the TransferService interface
type transferService struct {
	uowFactory  UnitOfWorkFactory
	inbox       InboxClient
	notifier    Notifier
	howToUseURL string
}

// NewTransferService creates a new transfer service
func NewTransferService(uowFactory UnitOfWorkFactory, inbox InboxClient, notifier Notifier, howToUseURL string) TransferService {
	return &transferService{
		uowFactory:  uowFactory,
		inbox:       inbox,
		notifier:    notifier,
		howToUseURL: howToUseURL,
	}
}

// Transfer executes one tip or gild as a single unit of work. The reply and
// the mark-as-read both happen before the commit, so a crash can only leave a
// replied-but-uncommitted message, which the audit log catches on redelivery.
func (s *transferService) Transfer(ctx context.Context, req TransferRequest) error {
	if strings.EqualFold(req.Sender, req.Recipient) {
		// Self-tips move nothing. Acknowledge and drop.
		log.WithField("sender", req.Sender).Debug("Ignoring self-tip")
		return s.inbox.MarkRead(ctx, req.Message.ExternalID)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	sender, err := getOrCreateUser(ctx, uow, req.Sender)
	if err != nil {
		return err
	}
	recipient, err := getOrCreateUser(ctx, uow, req.Recipient)
	if err != nil {
		return err
	}

	if sender.Balance.LessThan(req.Amount) {
		return s.rejectInsufficient(ctx, req, sender.Balance.String())
	}

	if err := uow.UserRepository().DeductBalance(ctx, sender.ID, req.Amount); err != nil {
		if err == ErrInsufficientFunds {
			return s.rejectInsufficient(ctx, req, sender.Balance.String())
		}
		return err
	}
	if err := uow.UserRepository().AddBalance(ctx, recipient.ID, req.Amount); err != nil {
		return err
	}

	msg := &models.Message{
		AuthorID:         sender.ID,
		Kind:             req.Message.Kind,
		ExternalID:       req.Message.ExternalID,
		ParentExternalID: req.Message.ParentExternalID,
		Subreddit:        req.Message.Subreddit,
		Body:             req.Message.Body,
		Context:          req.Message.Context,
		ExternalCreated:  req.Message.CreatedAt,
	}
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		return err
	}

	tip := &models.Tip{
		MessageID:    msg.ID,
		SenderID:     sender.ID,
		RecipientID:  recipient.ID,
		Amount:       req.Amount,
		AmountUSD:    req.AmountUSD,
		ParsedAmount: req.ParsedAmount,
		IsGild:       req.IsGild,
	}
	if err := uow.TipRepository().Create(ctx, tip); err != nil {
		return err
	}

	if req.IsGild {
		if err := s.inbox.Gild(ctx, req.Message.ParentExternalID); err != nil {
			return fmt.Errorf("failed to gild %s: %w", req.Message.ParentExternalID, err)
		}
		err = s.notifier.Reply(ctx, "ongild", map[string]string{
			"sender":         "u/" + sender.Username,
			"recipient":      "u/" + recipient.Username,
			"gild_amount":    rates.FormatCoin(req.Amount) + " LBC (" + rates.FormatUsd(req.AmountUSD) + ")",
			"how_to_use_url": s.howToUseURL,
		}, req.Message.ExternalID)
	} else {
		err = s.notifier.Reply(ctx, "onsendtip", map[string]string{
			"recipient":      "u/" + recipient.Username,
			"tip":            rates.FormatCoin(req.Amount) + " LBC (" + rates.FormatUsd(req.AmountUSD) + ")",
			"how_to_use_url": s.howToUseURL,
		}, req.Message.ExternalID)
	}
	if err != nil {
		return fmt.Errorf("failed to reply to %s: %w", req.Message.ExternalID, err)
	}

	if err := s.inbox.MarkRead(ctx, req.Message.ExternalID); err != nil {
		return fmt.Errorf("failed to mark %s read: %w", req.Message.ExternalID, err)
	}

	if req.IsGild {
		uow.EventBus().Publish(events.GildSentEvent{
			TipID:       tip.ID,
			SenderID:    sender.ID,
			RecipientID: recipient.ID,
			Amount:      req.Amount,
			AmountUSD:   req.AmountUSD,
		})
	} else {
		uow.EventBus().Publish(events.TipSentEvent{
			TipID:       tip.ID,
			SenderID:    sender.ID,
			RecipientID: recipient.ID,
			Amount:      req.Amount,
			AmountUSD:   req.AmountUSD,
		})
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	log.WithFields(log.Fields{
		"sender":    sender.Username,
		"recipient": recipient.Username,
		"amount":    req.Amount.String(),
		"gild":      req.IsGild,
	}).Info("Transfer committed")
	return nil
}

// rejectInsufficient tells the sender they cannot cover the amount and
// acknowledges the message. The enclosing unit of work rolls back, so lazily
// created user rows from this attempt are discarded with it.
func (s *transferService) rejectInsufficient(ctx context.Context, req TransferRequest, balance string) error {
	template := "onsendtip.insufficientfunds"
	subject := "Insufficient funds for tip"
	if req.IsGild {
		template = "ongild.insufficientfunds"
		subject = "Insufficient funds for gild"
	}
	subs := map[string]string{
		"recipient":      "u/" + req.Recipient,
		"amount":         rates.FormatCoin(req.Amount),
		"amount_usd":     rates.FormatUsd(req.AmountUSD),
		"balance":        balance,
		"how_to_use_url": s.howToUseURL,
	}
	if err := s.notifier.SendMessage(ctx, template, subs, subject, req.Sender); err != nil {
		return fmt.Errorf("failed to notify %s of insufficient funds: %w", req.Sender, err)
	}
	return s.inbox.MarkRead(ctx, req.Message.ExternalID)
}
