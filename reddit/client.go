// Package reddit implements the bot's surface against Reddit's OAuth API:
// the polled inbox, message acknowledgement, replies, private messages and
// the gild action.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lbryio/lbry-social-tipbot/models"
	"github.com/lbryio/lbry-social-tipbot/service"
)

const baseURL = "https://oauth.reddit.com"

// Reddit thing-kind prefixes
const (
	kindComment        = "t1"
	kindPrivateMessage = "t4"
)

const unreadPageSize = 100

// Client is the Reddit API client. It implements service.InboxClient.
type Client struct {
	tokens     *tokenSource
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a Reddit client for the given bot credentials.
func NewClient(creds Credentials, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		tokens:     newTokenSource(creds, httpClient),
		userAgent:  creds.UserAgent,
		httpClient: httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

type thing struct {
	Kind string `json:"kind"`
	Data struct {
		Name       string  `json:"name"`
		ParentID   string  `json:"parent_id"`
		Author     string  `json:"author"`
		Subreddit  string  `json:"subreddit"`
		Body       string  `json:"body"`
		Context    string  `json:"context"`
		CreatedUTC float64 `json:"created_utc"`
	} `json:"data"`
}

type listing struct {
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

// UnreadMessages polls the inbox for unread items. Comments arrive as public
// mentions, t4 things as direct commands; anything else is dropped.
func (c *Client) UnreadMessages(ctx context.Context) ([]service.InboundMessage, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/message/unread?limit=%d", unreadPageSize), nil)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}

	var unread listing
	if err := json.Unmarshal(body, &unread); err != nil {
		return nil, fmt.Errorf("unmarshal unread listing: %w", err)
	}

	messages := make([]service.InboundMessage, 0, len(unread.Data.Children))
	for _, item := range unread.Data.Children {
		var kind models.MessageKind
		switch item.Kind {
		case kindPrivateMessage:
			kind = models.MessageKindPrivate
		case kindComment:
			kind = models.MessageKindComment
		default:
			continue
		}

		messages = append(messages, service.InboundMessage{
			Kind:             kind,
			ExternalID:       item.Data.Name,
			ParentExternalID: item.Data.ParentID,
			Author:           item.Data.Author,
			Subreddit:        item.Data.Subreddit,
			Body:             item.Data.Body,
			Context:          item.Data.Context,
			CreatedAt:        time.Unix(int64(item.Data.CreatedUTC), 0).UTC(),
		})
	}
	return messages, nil
}

// MarkRead acknowledges a message at the inbox so it is not redelivered.
func (c *Client) MarkRead(ctx context.Context, externalID string) error {
	form := url.Values{}
	form.Set("id", externalID)

	if _, err := c.do(ctx, http.MethodPost, "/api/read_message", form); err != nil {
		return fmt.Errorf("mark read %s: %w", externalID, err)
	}
	return nil
}

// MessageAuthor resolves the author of a thing by its full id.
func (c *Client) MessageAuthor(ctx context.Context, externalID string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/info?id="+url.QueryEscape(externalID), nil)
	if err != nil {
		return "", fmt.Errorf("info %s: %w", externalID, err)
	}

	var info listing
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("unmarshal info listing: %w", err)
	}
	if len(info.Data.Children) == 0 {
		return "", fmt.Errorf("thing %s not found", externalID)
	}
	return info.Data.Children[0].Data.Author, nil
}

// apiResponse is the envelope of Reddit's api_type=json endpoints.
type apiResponse struct {
	JSON struct {
		RateLimit float64 `json:"ratelimit"`
		Errors    [][]any `json:"errors"`
	} `json:"json"`
}

// checkAPIResponse surfaces rate limiting as service.ErrRateLimited so
// callers can delay and retry rather than abandon the operation.
func checkAPIResponse(body []byte) error {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// Endpoints like gild return an empty body on success.
		return nil
	}
	if resp.JSON.RateLimit > 0 {
		return service.ErrRateLimited
	}
	if len(resp.JSON.Errors) > 0 {
		return fmt.Errorf("api errors: %v", resp.JSON.Errors)
	}
	return nil
}

// Gild issues the gold award against a thing.
func (c *Client) Gild(ctx context.Context, externalID string) error {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/gold/gild/"+url.PathEscape(externalID), url.Values{})
	if err != nil {
		return fmt.Errorf("gild %s: %w", externalID, err)
	}
	if err := checkAPIResponse(body); err != nil {
		return fmt.Errorf("gild %s: %w", externalID, err)
	}
	return nil
}

// comment posts a reply to a thing.
func (c *Client) comment(ctx context.Context, text, thingID string) error {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("text", text)
	form.Set("thing_id", thingID)

	body, err := c.do(ctx, http.MethodPost, "/api/comment", form)
	if err != nil {
		return fmt.Errorf("comment on %s: %w", thingID, err)
	}
	if err := checkAPIResponse(body); err != nil {
		return fmt.Errorf("comment on %s: %w", thingID, err)
	}
	return nil
}

// compose sends a private message.
func (c *Client) compose(ctx context.Context, text, subject, recipient string) error {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("text", text)
	form.Set("subject", subject)
	form.Set("to", recipient)

	body, err := c.do(ctx, http.MethodPost, "/api/compose", form)
	if err != nil {
		return fmt.Errorf("compose to %s: %w", recipient, err)
	}
	if err := checkAPIResponse(body); err != nil {
		return fmt.Errorf("compose to %s: %w", recipient, err)
	}
	return nil
}
