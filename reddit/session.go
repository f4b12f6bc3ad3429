package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const tokenURL = "https://www.reddit.com/api/v1/access_token"

// sessionMaxAge is how long an access token is trusted before a fresh one is
// requested. Reddit tokens expire after an hour.
const sessionMaxAge = 59 * time.Minute

// session is a bearer credential with its acquisition time. It is carried
// explicitly by the client rather than held in package state, and refreshed
// through the client's credentials when it ages out.
type session struct {
	accessToken string
	acquiredAt  time.Time
}

func (s *session) expired(now time.Time) bool {
	return s.accessToken == "" || now.Sub(s.acquiredAt) >= sessionMaxAge
}

// Credentials identifies the bot account and OAuth application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// tokenSource acquires and refreshes sessions using the password grant.
type tokenSource struct {
	mu         sync.Mutex
	creds      Credentials
	httpClient *http.Client
	current    session
}

func newTokenSource(creds Credentials, httpClient *http.Client) *tokenSource {
	return &tokenSource{
		creds:      creds,
		httpClient: httpClient,
	}
}

// Token returns a valid bearer token, acquiring a fresh one when the current
// session has aged out.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.current.expired(time.Now()) {
		return t.current.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", t.creds.Username)
	form.Set("password", t.creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(t.creds.ClientID, t.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", t.creds.UserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if strings.TrimSpace(tokenResp.AccessToken) == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	t.current = session{
		accessToken: tokenResp.AccessToken,
		acquiredAt:  time.Now(),
	}
	return t.current.accessToken, nil
}
