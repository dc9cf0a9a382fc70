package proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/scp-mobile/platform/shared/pkg/logging"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

const validatePath = "/api/validate"

// Config holds proxy client configuration
type Config struct {
	BaseURL string
	// Timeout bounds each proxy call; zero leaves it to the transport
	Timeout time.Duration
	// LogCapacity is the number of request/response pairs kept for --console
	LogCapacity int
}

// ActionError is a {success:false} reply or a non-2xx status from the proxy
type ActionError struct {
	Action     string
	StatusCode int
	Message    string
}

func (e *ActionError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s failed (%d): %s", e.Action, e.StatusCode, e.Message)
	}
	return e.Message
}

// envelope is the part of every proxy reply the client interprets itself
type envelope struct {
	Success bool            `json:"success"`
	Error   json.RawMessage `json:"error"`
}

// Client talks to the backend proxy's action endpoint on behalf of one session
type Client struct {
	endpoint string
	http     *http.Client
	logger   *logging.Logger
	log      *RequestLog

	mu      sync.RWMutex
	session *domain.Session
}

// New creates a proxy client
func New(config *Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	capacity := config.LogCapacity
	if capacity <= 0 {
		capacity = 200
	}
	return &Client{
		endpoint: strings.TrimRight(config.BaseURL, "/") + validatePath,
		http:     &http.Client{Timeout: config.Timeout},
		logger:   logger.WithComponent("proxy-client"),
		log:      NewRequestLog(capacity),
	}
}

// RequestLog returns the request/response log
func (c *Client) RequestLog() *RequestLog {
	return c.log
}

// Login authenticates org through the proxy and starts a session
func (c *Client) Login(ctx context.Context, org string) (*domain.Session, error) {
	org = strings.TrimSpace(org)
	if org == "" {
		return nil, domain.ErrMissingOrg
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.send(ctx, "", "auth", map[string]any{"org": org}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthFailed, err)
	}

	session, err := domain.NewSession(org, resp.Token)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.logger.Info("Logged in", "org", org)
	return session, nil
}

// Resume starts a session from a token obtained earlier
func (c *Client) Resume(org, token string) (*domain.Session, error) {
	session, err := domain.NewSession(org, token)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return session, nil
}

// Logout discards the session
func (c *Client) Logout() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// Session returns the current session
func (c *Client) Session() (*domain.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, domain.ErrNotLoggedIn
	}
	return c.session, nil
}

// SelectStore scopes the session to storeID
func (c *Client) SelectStore(storeID string) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, domain.ErrNotLoggedIn
	}
	c.session = c.session.WithStore(storeID)
	return c.session, nil
}

// call sends an authenticated action for the current session
func (c *Client) call(ctx context.Context, action string, fields map[string]any, out any) error {
	session, err := c.Session()
	if err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["org"] = session.Org
	return c.send(ctx, session.Token, action, fields, out)
}

// send posts one action and decodes the reply into out. A reply with
// success false is returned as an *ActionError.
func (c *Client) send(ctx context.Context, token, action string, fields map[string]any, out any) error {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["action"] = action

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Record(action, payload, 0, nil, err, time.Since(start))
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.log.Record(action, payload, resp.StatusCode, respBody, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return &ActionError{Action: action, StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := errorText(env.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusOK && msg == http.StatusText(http.StatusOK) {
			msg = "Unknown error"
		}
		return &ActionError{Action: action, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &ActionError{Action: action, StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// errorText renders the error member of a reply, which is usually a string
// but may be any JSON value passed through from the vendor.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
