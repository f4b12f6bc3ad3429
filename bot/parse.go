package bot

import (
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
)

// tipPattern matches a bare dollar amount or a "<number> <unit>" pair.
// The first match in the body wins.
var tipPattern = regexp.MustCompile(`(?i)(\$[\d.]+|[\d.]+ (usd|lbc))`)

// DirectKind classifies a direct command message
type DirectKind int

const (
	// DirectUnknown means the body matched no command; ignored without a reply
	DirectUnknown DirectKind = iota
	DirectBalance
	DirectDeposit
	DirectWithdraw
)

// WithdrawProblem is a validation failure of a well-formed withdraw command.
// Each value maps to a distinct rejection reply.
type WithdrawProblem int

const (
	WithdrawOK WithdrawProblem = iota
	WithdrawInvalidAmount
	WithdrawAmountLTEFee
	WithdrawInvalidAddress
)

// DirectCommand is the parsed form of a direct command message
type DirectCommand struct {
	Kind    DirectKind
	Amount  decimal.Decimal
	Address string
	Problem WithdrawProblem
}

// ParseDirect interprets the body of a private message: `balance`,
// `deposit`, or `withdraw <amount> <address>`. The fee is needed because a
// withdrawal not exceeding it can never pay for itself.
func ParseDirect(body string, fee decimal.Decimal) DirectCommand {
	trimmed := strings.TrimSpace(body)

	switch strings.ToLower(trimmed) {
	case "balance":
		return DirectCommand{Kind: DirectBalance}
	case "deposit":
		return DirectCommand{Kind: DirectDeposit}
	}

	parts := strings.Fields(trimmed)
	if len(parts) != 3 || strings.ToLower(parts[0]) != "withdraw" {
		return DirectCommand{Kind: DirectUnknown}
	}

	cmd := DirectCommand{Kind: DirectWithdraw, Address: parts[2]}

	amount, err := decimal.NewFromString(parts[1])
	if err != nil || !amount.IsPositive() {
		cmd.Problem = WithdrawInvalidAmount
		return cmd
	}
	cmd.Amount = amount

	if amount.LessThanOrEqual(fee) {
		cmd.Problem = WithdrawAmountLTEFee
		return cmd
	}

	if _, _, err := base58.CheckDecode(parts[2]); err != nil {
		cmd.Problem = WithdrawInvalidAddress
		return cmd
	}

	return cmd
}

// MentionKind classifies a public mention message
type MentionKind int

const (
	// MentionNone means no tip or gild pattern matched; acknowledge only
	MentionNone MentionKind = iota
	MentionTip
	MentionGild
	// MentionInvalidAmount means a tip pattern matched but carried a bad amount
	MentionInvalidAmount
)

// Mention is the parsed form of a public mention. Exactly one of AmountUSD
// and AmountCoin is positive for a tip, depending on how the amount was
// denominated.
type Mention struct {
	Kind       MentionKind
	AmountUSD  decimal.Decimal
	AmountCoin decimal.Decimal
	Parsed     string
}

// MentionParser scans comment bodies for the gild trigger and tip amounts.
// The gild trigger needs the bot's username, so the parser is built once per
// configuration.
type MentionParser struct {
	gildPattern *regexp.Regexp
}

// NewMentionParser builds a parser that recognizes mentions of the given
// bot username.
func NewMentionParser(botUsername string) *MentionParser {
	name := regexp.QuoteMeta(botUsername)
	return &MentionParser{
		gildPattern: regexp.MustCompile(`(?i)gild (u|/u)/` + name + `|(u|/u)/` + name + ` gild`),
	}
}

// Parse interprets a public mention body. The gild trigger takes precedence
// over a tip amount when both match.
func (p *MentionParser) Parse(body string) Mention {
	if p.gildPattern.MatchString(body) {
		return Mention{Kind: MentionGild}
	}

	matched := tipPattern.FindString(body)
	if matched == "" {
		return Mention{Kind: MentionNone}
	}

	if strings.Contains(matched, " ") {
		parts := strings.SplitN(matched, " ", 2)
		amount, err := decimal.NewFromString(parts[0])
		if err != nil || !amount.IsPositive() {
			return Mention{Kind: MentionInvalidAmount, Parsed: matched}
		}
		if strings.EqualFold(parts[1], "lbc") {
			return Mention{Kind: MentionTip, AmountCoin: amount, Parsed: matched}
		}
		return Mention{Kind: MentionTip, AmountUSD: amount, Parsed: matched}
	}

	amount, err := decimal.NewFromString(strings.TrimPrefix(matched, "$"))
	if err != nil || !amount.IsPositive() {
		return Mention{Kind: MentionInvalidAmount, Parsed: matched}
	}
	return Mention{Kind: MentionTip, AmountUSD: amount, Parsed: matched}
}
