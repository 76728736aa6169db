/**
 * @description
 * This package provides a client for the CarePro core backend (the ASP.NET API that
 * owns users, gigs and verifications). It is used to push normalized Dojah results
 * to the backend's verification-update endpoint on behalf of a caller.
 *
 * @notes
 * - The caller's bearer token is passed through unchanged; this service never
 *   mints backend credentials of its own.
 * - Every request carries an explicit timeout so a hung backend cannot pin a
 *   forward goroutine forever.
 */
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultVerificationPath is the backend route that accepts verification updates.
const DefaultVerificationPath = "/users/{userId}/verification"

// ErrMissingBaseURL is returned when the client has no backend to talk to.
var ErrMissingBaseURL = errors.New("backend base url is empty")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned error status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the CarePro backend.
type Client struct {
	baseURL          string
	verificationPath string
	method           string
	httpClient       *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithVerificationPath sets the route template; "{userId}" is substituted.
func WithVerificationPath(path string) Option {
	return func(c *Client) {
		if p := strings.TrimSpace(path); p != "" {
			c.verificationPath = p
		}
	}
}

// WithMethod sets the HTTP method used for verification updates.
func WithMethod(method string) Option {
	return func(c *Client) {
		if m := strings.ToUpper(strings.TrimSpace(method)); m != "" {
			c.method = m
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new backend client.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:          strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		verificationPath: DefaultVerificationPath,
		method:           http.MethodPatch,
		httpClient:       &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateVerification submits a verification record for the given user and
// returns the backend's response body.
func (c *Client) UpdateVerification(ctx context.Context, authToken, userID string, payload any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := strings.ReplaceAll(c.verificationPath, "{userId}", url.PathEscape(userID))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(authToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(respBody, resp.Status),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// extractMessage pulls a human message out of the ASP.NET error shapes the
// backend produces, falling back to the HTTP status text.
func extractMessage(body []byte, fallback string) string {
	var shaped struct {
		Message string `json:"message"`
		Title   string `json:"title"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		for _, candidate := range []string{shaped.Message, shaped.Detail, shaped.Title, shaped.Error} {
			if strings.TrimSpace(candidate) != "" {
				return strings.TrimSpace(candidate)
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return fallback
}
