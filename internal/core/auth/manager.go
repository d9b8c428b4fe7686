package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/csafsync/csafsync/internal/core"
)

const defaultTokenURL = "https://id.cisco.com/oauth2/default/v1/token"

// Manager owns the bearer token. It mints a new one from client credentials
// on first use, hands out the cached value until it is invalidated, and mints
// again after invalidation. Validity is discovered reactively: the dispatcher
// calls Invalidate when the API answers 401/403.
type Manager struct {
	TokenURL    string
	Credentials core.Credentials
	HTTPClient  *http.Client
	Timeout     time.Duration
	Clock       func() time.Time

	mu    sync.Mutex
	token core.Token
	valid bool
}

// Seed installs an externally supplied token. The manager treats it as
// already acquired; invalidation still falls back to minting when credential
// material is available.
func (m *Manager) Seed(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = core.Token{Value: value, ObtainedAt: m.now()}
	m.valid = true
}

// Token returns the current bearer token, minting a new one when none is
// held or the held one was invalidated. A rejected credential exchange is a
// fatal *core.AuthError.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m == nil {
		return "", &core.AuthError{Op: "token", Err: errors.New("token manager not configured")}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.token.Value != "" {
		return m.token.Value, nil
	}

	if m.Credentials.IsZero() {
		return "", &core.AuthError{Op: "token", Err: errors.New("no credentials available to mint a token")}
	}

	minted, err := m.mint(ctx)
	if err != nil {
		return "", err
	}

	m.token = minted
	m.valid = true
	return m.token.Value, nil
}

// Invalidate marks the current token as unusable so the next Token call
// mints a fresh one.
func (m *Manager) Invalidate() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = false
}

// mint performs the client-credentials exchange. Callers hold m.mu.
func (m *Manager) mint(ctx context.Context) (core.Token, error) {
	endpoint := strings.TrimSpace(m.TokenURL)
	if endpoint == "" {
		endpoint = defaultTokenURL
	}

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.Credentials.ClientID},
		"client_secret": {m.Credentials.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return core.Token{}, &core.AuthError{Op: "token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return core.Token{}, &core.AuthError{Op: "token", Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Token{}, &core.AuthError{Op: "token", Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return core.Token{}, &core.AuthError{Op: "token", StatusCode: resp.StatusCode}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return core.Token{}, &core.AuthError{Op: "token", Err: err}
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return core.Token{}, &core.AuthError{Op: "token", Err: errors.New("token response missing access_token")}
	}

	return core.Token{Value: parsed.AccessToken, ObtainedAt: m.now()}, nil
}

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
