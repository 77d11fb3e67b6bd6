// Package api talks to the backend's HTTP endpoints: authentication and
// stream metadata. Realtime traffic goes over the transport client, not
// here.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is a thin JSON client for the backend API.
type Client struct {
	base string
	http *http.Client
}

// New builds a client for the given base URL, e.g.
// "http://localhost:8080/api".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: http.DefaultClient,
	}
}

// NewWithHTTPClient is New with an explicit *http.Client, used by tests.
func NewWithHTTPClient(base string, hc *http.Client) *Client {
	c := New(base)
	c.http = hc
	return c
}

// errorBody is the error shape the backend returns.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error is an HTTP collaborator failure carrying the server-provided
// message when one was available.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("api: request failed (status %d)", e.Status)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		msg := ""
		if decodeErr := json.NewDecoder(resp.Body).Decode(&eb); decodeErr == nil {
			msg = eb.Error
			if msg == "" {
				msg = eb.Message
			}
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
