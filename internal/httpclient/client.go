// Package httpclient is the JSON client the services use to call each other.
// Transport failures and 5xx answers become apperr.DependencyError; 4xx
// answers become a *StatusError that unwraps to the matching apperr kind.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type Client struct {
	Name    string // dependency name used in errors
	BaseURL string
	HTTP    *http.Client
}

func New(name, baseURL string, timeout time.Duration) *Client {
	return &Client{Name: name, BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

type StatusError struct {
	Code    int
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &apperr.ValidationError{Reason: e.Message}
	}
	return nil
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Unavailable(c.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Unavailable(c.Name, err)
	}
	if resp.StatusCode >= 500 {
		return apperr.Unavailable(c.Name, &StatusError{Code: resp.StatusCode, Message: message(raw), Body: raw})
	}
	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: message(raw), Body: raw}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Unavailable(c.Name, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func message(raw []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return string(bytes.TrimSpace(raw))
}
