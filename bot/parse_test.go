package bot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// Valid base58check address for withdraw parsing tests.
const validAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

var testFee = decimal.RequireFromString("0.00002000")

func TestParseDirect_Balance(t *testing.T) {
	assert.Equal(t, DirectBalance, ParseDirect("balance", testFee).Kind)
	assert.Equal(t, DirectBalance, ParseDirect("  Balance  ", testFee).Kind)
	assert.Equal(t, DirectBalance, ParseDirect("BALANCE", testFee).Kind)
}

func TestParseDirect_Deposit(t *testing.T) {
	assert.Equal(t, DirectDeposit, ParseDirect("deposit", testFee).Kind)
	assert.Equal(t, DirectDeposit, ParseDirect("Deposit", testFee).Kind)
}

func TestParseDirect_Unknown(t *testing.T) {
	assert.Equal(t, DirectUnknown, ParseDirect("hello there", testFee).Kind)
	assert.Equal(t, DirectUnknown, ParseDirect("", testFee).Kind)
	assert.Equal(t, DirectUnknown, ParseDirect("withdraw 1", testFee).Kind)
	assert.Equal(t, DirectUnknown, ParseDirect("withdraw 1 addr extra", testFee).Kind)
	assert.Equal(t, DirectUnknown, ParseDirect("balance please", testFee).Kind)
}

func TestParseDirect_Withdraw(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cmd := ParseDirect("withdraw 10.5 "+validAddress, testFee)
		assert.Equal(t, DirectWithdraw, cmd.Kind)
		assert.Equal(t, WithdrawOK, cmd.Problem)
		assert.Equal(t, "10.5", cmd.Amount.String())
		assert.Equal(t, validAddress, cmd.Address)
	})

	t.Run("case insensitive keyword", func(t *testing.T) {
		cmd := ParseDirect("Withdraw 1 "+validAddress, testFee)
		assert.Equal(t, DirectWithdraw, cmd.Kind)
		assert.Equal(t, WithdrawOK, cmd.Problem)
	})

	t.Run("unparseable amount", func(t *testing.T) {
		cmd := ParseDirect("withdraw ten "+validAddress, testFee)
		assert.Equal(t, WithdrawInvalidAmount, cmd.Problem)
	})

	t.Run("zero amount", func(t *testing.T) {
		cmd := ParseDirect("withdraw 0 "+validAddress, testFee)
		assert.Equal(t, WithdrawInvalidAmount, cmd.Problem)
	})

	t.Run("negative amount", func(t *testing.T) {
		cmd := ParseDirect("withdraw -5 "+validAddress, testFee)
		assert.Equal(t, WithdrawInvalidAmount, cmd.Problem)
	})

	t.Run("amount equal to fee rejected", func(t *testing.T) {
		cmd := ParseDirect("withdraw 0.00002000 "+validAddress, testFee)
		assert.Equal(t, WithdrawAmountLTEFee, cmd.Problem)
	})

	t.Run("amount below fee rejected", func(t *testing.T) {
		cmd := ParseDirect("withdraw 0.00001 "+validAddress, testFee)
		assert.Equal(t, WithdrawAmountLTEFee, cmd.Problem)
	})

	t.Run("amount just above fee accepted", func(t *testing.T) {
		cmd := ParseDirect("withdraw 0.00002001 "+validAddress, testFee)
		assert.Equal(t, WithdrawOK, cmd.Problem)
	})

	t.Run("invalid address", func(t *testing.T) {
		cmd := ParseDirect("withdraw 10 notanaddress", testFee)
		assert.Equal(t, WithdrawInvalidAddress, cmd.Problem)
	})

	t.Run("address with bad checksum", func(t *testing.T) {
		// Last character flipped
		cmd := ParseDirect("withdraw 10 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", testFee)
		assert.Equal(t, WithdrawInvalidAddress, cmd.Problem)
	})
}

func TestMentionParser_Gild(t *testing.T) {
	parser := NewMentionParser("lbryian")

	assert.Equal(t, MentionGild, parser.Parse("gild u/lbryian").Kind)
	assert.Equal(t, MentionGild, parser.Parse("gild /u/lbryian").Kind)
	assert.Equal(t, MentionGild, parser.Parse("u/lbryian gild").Kind)
	assert.Equal(t, MentionGild, parser.Parse("/u/lbryian gild").Kind)
	assert.Equal(t, MentionGild, parser.Parse("GILD U/LBRYIAN").Kind)
}

func TestMentionParser_GildPrecedence(t *testing.T) {
	parser := NewMentionParser("lbryian")

	// A body that carries both triggers is a gild, not a tip.
	mention := parser.Parse("gild u/lbryian and here is $5 too")
	assert.Equal(t, MentionGild, mention.Kind)
}

func TestMentionParser_Tip(t *testing.T) {
	parser := NewMentionParser("lbryian")

	t.Run("dollar amount", func(t *testing.T) {
		mention := parser.Parse("u/lbryian $5")
		assert.Equal(t, MentionTip, mention.Kind)
		assert.Equal(t, "5", mention.AmountUSD.String())
		assert.True(t, mention.AmountCoin.IsZero())
		assert.Equal(t, "$5", mention.Parsed)
	})

	t.Run("usd denominated", func(t *testing.T) {
		mention := parser.Parse("take 2.50 usd u/lbryian")
		assert.Equal(t, MentionTip, mention.Kind)
		assert.Equal(t, "2.5", mention.AmountUSD.String())
	})

	t.Run("coin denominated", func(t *testing.T) {
		mention := parser.Parse("10 lbc for you u/lbryian")
		assert.Equal(t, MentionTip, mention.Kind)
		assert.Equal(t, "10", mention.AmountCoin.String())
		assert.True(t, mention.AmountUSD.IsZero())
		assert.Equal(t, "10 lbc", mention.Parsed)
	})

	t.Run("first match wins", func(t *testing.T) {
		mention := parser.Parse("$1 or maybe $2 u/lbryian")
		assert.Equal(t, "1", mention.AmountUSD.String())
	})
}

func TestMentionParser_None(t *testing.T) {
	parser := NewMentionParser("lbryian")

	assert.Equal(t, MentionNone, parser.Parse("thanks u/lbryian").Kind)
	assert.Equal(t, MentionNone, parser.Parse("").Kind)
}

func TestMentionParser_InvalidAmount(t *testing.T) {
	parser := NewMentionParser("lbryian")

	mention := parser.Parse("here is 1.2.3 usd u/lbryian")
	assert.Equal(t, MentionInvalidAmount, mention.Kind)
}
