package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lbryio/lbry-social-tipbot/models"
)

// CreateTestMessage creates a message audit row with default values
func CreateTestMessage(authorID int64, externalID string) *models.Message {
	return &models.Message{
		AuthorID:         authorID,
		Kind:             models.MessageKindPrivate,
		ExternalID:       externalID,
		ParentExternalID: "",
		Subreddit:        "lbry",
		Body:             "balance",
		Context:          "",
		ExternalCreated:  time.Now().UTC().Truncate(time.Second),
	}
}

// CreateTestTip creates a tip row linking a message to a balance move
func CreateTestTip(messageID, senderID, recipientID int64, amount string) *models.Tip {
	return &models.Tip{
		MessageID:    messageID,
		SenderID:     senderID,
		RecipientID:  recipientID,
		Amount:       decimal.RequireFromString(amount),
		AmountUSD:    decimal.RequireFromString("1.00"),
		ParsedAmount: "$1",
	}
}

// CreateTestAttempt creates a pending withdrawal attempt
func CreateTestAttempt(userID int64, address, amount string) *models.WithdrawalAttempt {
	return &models.WithdrawalAttempt{
		ID:      uuid.NewString(),
		UserID:  userID,
		Address: address,
		Amount:  decimal.RequireFromString(amount),
		State:   models.AttemptStatePending,
	}
}
