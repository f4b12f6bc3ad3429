// Package chain provides the coin daemon JSON-RPC client.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lbryio/lbry-social-tipbot/service"
)

// Config holds client configuration.
type Config struct {
	RPCURL  string
	Account string
	Timeout time.Duration
}

// Client talks to the coin daemon over its JSON-RPC interface.
type Client struct {
	rpcURL     string
	account    string
	httpClient *http.Client
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		rpcURL:  cfg.RPCURL,
		account: cfg.Account,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call makes an RPC call to the daemon and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	req := rpcRequest{
		Method: method,
		Params: params,
		ID:     1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// isTimeout reports whether an RPC failure was a timeout rather than an
// explicit refusal. For calls with external side effects a timeout means the
// outcome is unknown.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// NewAddress generates a fresh receiving address for the bot's account.
func (c *Client) NewAddress(ctx context.Context) (string, error) {
	var address string
	if err := c.call(ctx, "getnewaddress", []any{c.account}, &address); err != nil {
		return "", fmt.Errorf("getnewaddress: %w", err)
	}
	return address, nil
}

// Send transfers amount from the bot's account to an external address and
// returns the chain transaction id. The call is irreversible once the daemon
// accepts it, so a timeout is not a failure: it is reported as
// service.ErrAmbiguousOutcome and must be reconciled, never retried blindly.
func (c *Client) Send(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	// The amount goes over the wire as its exact decimal text. A float64
	// would round amounts near the precision limit and break later matching
	// against the daemon's transaction list.
	amt := json.Number(amount.String())

	var txID string
	if err := c.call(ctx, "sendfrom", []any{c.account, address, amt}, &txID); err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("sendfrom %s: %w", address, service.ErrAmbiguousOutcome)
		}
		return "", fmt.Errorf("sendfrom %s: %w", address, err)
	}
	return txID, nil
}

type transactionResult struct {
	Confirmations int `json:"confirmations"`
}

// TransactionConfirmations returns the confirmation count of a transaction.
func (c *Client) TransactionConfirmations(ctx context.Context, txID string) (int, error) {
	var result transactionResult
	if err := c.call(ctx, "gettransaction", []any{txID}, &result); err != nil {
		return 0, fmt.Errorf("gettransaction %s: %w", txID, err)
	}
	return result.Confirmations, nil
}

type listedTransaction struct {
	Address       string          `json:"address"`
	TxID          string          `json:"txid"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int             `json:"confirmations"`
}

// ListRecentTransactions lists the most recent transactions touching the
// bot's account, incoming and outgoing.
func (c *Client) ListRecentTransactions(ctx context.Context, limit int) ([]service.ChainTransaction, error) {
	var listed []listedTransaction
	if err := c.call(ctx, "listtransactions", []any{c.account, limit}, &listed); err != nil {
		return nil, fmt.Errorf("listtransactions: %w", err)
	}

	txs := make([]service.ChainTransaction, 0, len(listed))
	for _, tx := range listed {
		txs = append(txs, service.ChainTransaction{
			Address:       tx.Address,
			TxID:          tx.TxID,
			Amount:        tx.Amount,
			Confirmations: tx.Confirmations,
		})
	}
	return txs, nil
}
