package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// SubscribeAuditLog attaches handlers that write a structured audit record
// for every committed ledger movement. Events flush only after the DB
// commit, so each record corresponds to a durable balance change.
func SubscribeAuditLog(bus *Bus) {
	bus.Subscribe(EventTypeUserCreated, func(ctx context.Context, event Event) {
		if e, ok := event.(UserCreatedEvent); ok {
			log.WithFields(log.Fields{
				"audit":  "user_created",
				"userID": e.UserID,
				"user":   e.Username,
			}).Info("User created")
		}
	})

	bus.Subscribe(EventTypeTipSent, func(ctx context.Context, event Event) {
		if e, ok := event.(TipSentEvent); ok {
			log.WithFields(log.Fields{
				"audit":     "tip_sent",
				"tipID":     e.TipID,
				"sender":    e.SenderID,
				"recipient": e.RecipientID,
				"amount":    e.Amount.String(),
				"amountUSD": e.AmountUSD.String(),
			}).Info("Tip committed")
		}
	})

	bus.Subscribe(EventTypeGildSent, func(ctx context.Context, event Event) {
		if e, ok := event.(GildSentEvent); ok {
			log.WithFields(log.Fields{
				"audit":     "gild_sent",
				"tipID":     e.TipID,
				"sender":    e.SenderID,
				"recipient": e.RecipientID,
				"amount":    e.Amount.String(),
				"amountUSD": e.AmountUSD.String(),
			}).Info("Gild committed")
		}
	})

	bus.Subscribe(EventTypeWithdrawalCompleted, func(ctx context.Context, event Event) {
		if e, ok := event.(WithdrawalCompletedEvent); ok {
			log.WithFields(log.Fields{
				"audit":        "withdrawal_completed",
				"withdrawalID": e.WithdrawalID,
				"userID":       e.UserID,
				"txid":         e.TxID,
				"amount":       e.Amount.String(),
			}).Info("Withdrawal committed")
		}
	})

	bus.Subscribe(EventTypeDepositConfirmed, func(ctx context.Context, event Event) {
		if e, ok := event.(DepositConfirmedEvent); ok {
			log.WithFields(log.Fields{
				"audit":     "deposit_confirmed",
				"depositID": e.DepositID,
				"userID":    e.UserID,
				"txHash":    e.TxHash,
				"amount":    e.Amount.String(),
			}).Info("Deposit credited")
		}
	})
}
