// Package bot parses inbound messages and routes them to the engines.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/lbryio/lbry-social-tipbot/models"
	"github.com/lbryio/lbry-social-tipbot/rates"
	"github.com/lbryio/lbry-social-tipbot/service"
)

// Dispatcher drains the unread inbox and routes each message to the engine
// that handles it. It is the only component that talks to every engine.
type Dispatcher struct {
	inbox       service.InboxClient
	notifier    service.Notifier
	messages    service.MessageRepository // pool-backed, for idempotency lookups
	users       service.UserService
	transfers   service.TransferService
	withdrawals service.WithdrawService
	rates       service.RateClient
	parser      *MentionParser
	fee         decimal.Decimal
	gildPrice   decimal.Decimal
	howToUseURL string
}

// Config collects the dispatcher's collaborators.
type Config struct {
	Inbox       service.InboxClient
	Notifier    service.Notifier
	Messages    service.MessageRepository
	Users       service.UserService
	Transfers   service.TransferService
	Withdrawals service.WithdrawService
	Rates       service.RateClient
	BotUsername string
	Fee         decimal.Decimal
	GildPrice   decimal.Decimal
	HowToUseURL string
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		inbox:       cfg.Inbox,
		notifier:    cfg.Notifier,
		messages:    cfg.Messages,
		users:       cfg.Users,
		transfers:   cfg.Transfers,
		withdrawals: cfg.Withdrawals,
		rates:       cfg.Rates,
		parser:      NewMentionParser(cfg.BotUsername),
		fee:         cfg.Fee,
		gildPrice:   cfg.GildPrice,
		howToUseURL: cfg.HowToUseURL,
	}
}

// PollOnce fetches the unread inbox and dispatches every message. Failures
// on one message are logged and the rest of the batch still runs, except for
// a platform rate limit, which aborts the cycle since every further call
// would hit it too.
func (d *Dispatcher) PollOnce(ctx context.Context) error {
	msgs, err := d.inbox.UnreadMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch unread messages: %w", err)
	}

	for _, msg := range msgs {
		if err := d.Dispatch(ctx, msg); err != nil {
			if errors.Is(err, service.ErrRateLimited) {
				return err
			}
			log.WithError(err).WithFields(log.Fields{
				"externalID": msg.ExternalID,
				"author":     msg.Author,
			}).Error("Failed to dispatch message")
		}
	}
	return nil
}

// Dispatch routes one inbound message. The audit log is consulted first: a
// message that was already processed is only re-acknowledged, never re-run,
// so redelivery after a lost mark-as-read cannot double-apply anything.
func (d *Dispatcher) Dispatch(ctx context.Context, msg service.InboundMessage) error {
	seen, err := d.messages.GetByExternalID(ctx, msg.ExternalID)
	if err != nil {
		return err
	}
	if seen != nil {
		log.WithField("externalID", msg.ExternalID).Debug("Re-acknowledging processed message")
		return d.inbox.MarkRead(ctx, msg.ExternalID)
	}

	switch msg.Kind {
	case models.MessageKindComment:
		return d.dispatchMention(ctx, msg)
	default:
		return d.dispatchDirect(ctx, msg)
	}
}

func (d *Dispatcher) dispatchDirect(ctx context.Context, msg service.InboundMessage) error {
	cmd := ParseDirect(msg.Body, d.fee)

	switch cmd.Kind {
	case DirectBalance:
		balance, err := d.users.Balance(ctx, msg.Author)
		if err != nil {
			return err
		}
		err = d.notifier.SendMessage(ctx, "onbalance", map[string]string{
			"amount":         balance.String(),
			"how_to_use_url": d.howToUseURL,
		}, "Your balance", msg.Author)
		if err != nil {
			return err
		}
		return d.inbox.MarkRead(ctx, msg.ExternalID)

	case DirectDeposit:
		address, err := d.users.DepositAddress(ctx, msg.Author)
		if err != nil {
			return err
		}
		err = d.notifier.SendMessage(ctx, "ondeposit", map[string]string{
			"address":        address,
			"how_to_use_url": d.howToUseURL,
		}, "Your deposit address", msg.Author)
		if err != nil {
			return err
		}
		return d.inbox.MarkRead(ctx, msg.ExternalID)

	case DirectWithdraw:
		return d.dispatchWithdraw(ctx, cmd, msg)

	default:
		// Not a command. Acknowledge and move on.
		return d.inbox.MarkRead(ctx, msg.ExternalID)
	}
}

func (d *Dispatcher) dispatchWithdraw(ctx context.Context, cmd DirectCommand, msg service.InboundMessage) error {
	switch cmd.Problem {
	case WithdrawInvalidAmount:
		return d.rejectWithdraw(ctx, msg, "onwithdraw.invalidamount", "Invalid amount for withdrawal", nil)

	case WithdrawAmountLTEFee:
		return d.rejectWithdraw(ctx, msg, "onwithdraw.amountltefee", "Withdrawal amount less than minimum fee", map[string]string{
			"amount": cmd.Amount.String(),
			"fee":    rates.FormatCoin(d.fee),
		})

	case WithdrawInvalidAddress:
		return d.rejectWithdraw(ctx, msg, "onwithdraw.invalidaddress", "Invalid address for withdrawal", nil)
	}

	return d.withdrawals.Withdraw(ctx, cmd.Amount, cmd.Address, msg)
}

func (d *Dispatcher) rejectWithdraw(ctx context.Context, msg service.InboundMessage, template, subject string, extra map[string]string) error {
	subs := map[string]string{"how_to_use_url": d.howToUseURL}
	for k, v := range extra {
		subs[k] = v
	}
	if err := d.notifier.SendMessage(ctx, template, subs, subject, msg.Author); err != nil {
		return err
	}
	return d.inbox.MarkRead(ctx, msg.ExternalID)
}

func (d *Dispatcher) dispatchMention(ctx context.Context, msg service.InboundMessage) error {
	mention := d.parser.Parse(msg.Body)

	switch mention.Kind {
	case MentionNone:
		return d.inbox.MarkRead(ctx, msg.ExternalID)

	case MentionInvalidAmount:
		err := d.notifier.SendMessage(ctx, "onsendtip.invalidamount", map[string]string{
			"how_to_use_url": d.howToUseURL,
		}, "Invalid amount for send tip", msg.Author)
		if err != nil {
			return err
		}
		return d.inbox.MarkRead(ctx, msg.ExternalID)
	}

	recipient, err := d.inbox.MessageAuthor(ctx, msg.ParentExternalID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient of %s: %w", msg.ParentExternalID, err)
	}

	rate, err := d.rates.GetRate(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch exchange rate: %w", err)
	}

	req := service.TransferRequest{
		Sender:    msg.Author,
		Recipient: recipient,
		IsGild:    mention.Kind == MentionGild,
		Message:   msg,
	}

	switch {
	case mention.Kind == MentionGild:
		req.AmountUSD = d.gildPrice
		req.Amount, err = rates.UsdToCoin(d.gildPrice, rate)
		req.ParsedAmount = "gild"
	case mention.AmountCoin.IsPositive():
		req.Amount = mention.AmountCoin
		req.AmountUSD, err = rates.CoinToUsd(mention.AmountCoin, rate)
		req.ParsedAmount = mention.Parsed
	default:
		req.AmountUSD = mention.AmountUSD
		req.Amount, err = rates.UsdToCoin(mention.AmountUSD, rate)
		req.ParsedAmount = mention.Parsed
	}
	if err != nil {
		return fmt.Errorf("failed to convert amount: %w", err)
	}

	return d.transfers.Transfer(ctx, req)
}
