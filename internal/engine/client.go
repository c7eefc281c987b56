package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// reserved request fields that input parameters may not override.
var reserved = map[string]bool{
	"viewtype":     true,
	"userinput":    true,
	"text":         true,
	"clientOrigin": true,
}

// Client is a TIE API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the engine client.
type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New creates a new engine client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("engine URL is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid engine URL: %w", err)
	}

	baseURL := cfg.URL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// URL returns the normalized engine URL.
func (c *Client) URL() string {
	return c.baseURL
}

// SendInput sends one user input to the engine. An empty sessionID starts a
// new engine session; the returned Reply carries the session to use next.
func (c *Client) SendInput(ctx context.Context, sessionID string, in Input) (*Reply, error) {
	data := url.Values{}
	data.Set("viewtype", "tieapi")
	data.Set("userinput", in.Text)
	if in.Channel != "" {
		data.Set("channel", in.Channel)
	}
	for k, v := range in.Parameters {
		if reserved[k] {
			continue
		}
		data.Set(k, v)
	}

	var reply Reply
	if err := c.post(ctx, withSession(c.baseURL, sessionID), sessionID, data, &reply); err != nil {
		return nil, err
	}
	if reply.Status != 0 {
		return nil, &Error{Status: reply.Status, Message: reply.Message}
	}
	return &reply, nil
}

// Close ends an engine session.
func (c *Client) Close(ctx context.Context, sessionID string) error {
	data := url.Values{}
	data.Set("viewtype", "tieapi")
	return c.post(ctx, withSession(c.baseURL+"endsession", sessionID), sessionID, data, nil)
}

// Error represents a failed engine call.
type Error struct {
	HTTPStatus int
	Status     int
	Message    string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("engine error: received error code %d", e.HTTPStatus)
	}
	return fmt.Sprintf("engine error %d: %s", e.Status, e.Message)
}

func withSession(u, sessionID string) string {
	if sessionID == "" {
		return u
	}
	return u + ";jsessionid=" + sessionID
}

// post performs a form POST with session addressing.
func (c *Client) post(ctx context.Context, endpoint, sessionID string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json;charset=UTF-8")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	if sessionID != "" {
		req.Header.Set("Cookie", "JSESSIONID="+sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read engine response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &Error{HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to parse engine response: %w", err)
		}
	}
	return nil
}
