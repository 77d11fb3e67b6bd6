// Package moderation issues privileged mutations against the admin HTTP
// API: listing, blocking and unblocking comment source addresses.
// Deletes ride the realtime channel instead; blocks have no broadcast
// and the HTTP response is authoritative.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotAuthenticated is returned when no bearer credential is
// available for a privileged call.
var ErrNotAuthenticated = errors.New("moderation: no operator credential")

// BlockedIP is one entry of the backend's block list.
type BlockedIP struct {
	ID        int64  `json:"id"`
	IPAddress string `json:"ipAddress"`
	Reason    string `json:"reason"`
	BlockedAt string `json:"blockedAt"`
	BlockedBy string `json:"blockedBy"`
}

// TokenSource supplies the bearer credential for privileged calls.
// *session.Store satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Gateway is the authenticated admin API client.
type Gateway struct {
	base   string
	tokens TokenSource
	http   *http.Client
}

// New builds a gateway against the given API base URL.
func New(base string, tokens TokenSource) *Gateway {
	return &Gateway{
		base:   strings.TrimRight(base, "/"),
		tokens: tokens,
		http:   http.DefaultClient,
	}
}

// NewWithHTTPClient is New with an explicit *http.Client, used by tests.
func NewWithHTTPClient(base string, tokens TokenSource, hc *http.Client) *Gateway {
	g := New(base, tokens)
	g.http = hc
	return g
}

// List fetches the currently blocked sources. Fetched on demand, never
// streamed.
func (g *Gateway) List(ctx context.Context) ([]BlockedIP, error) {
	var out []BlockedIP
	if err := g.do(ctx, http.MethodGet, "/admin/blocked-ips", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Block rejects a source address at the backend's ingress for future
// submissions. Prior messages from that source are not hidden locally;
// removal is a separate explicit delete.
func (g *Gateway) Block(ctx context.Context, ipAddress, reason, adminUsername string) (BlockedIP, error) {
	q := url.Values{}
	q.Set("ipAddress", ipAddress)
	q.Set("reason", reason)
	q.Set("adminUsername", adminUsername)

	var out BlockedIP
	err := g.do(ctx, http.MethodPost, "/admin/blocked-ips/block?"+q.Encode(), &out)
	return out, err
}

// Unblock reverses a prior block by its list id.
func (g *Gateway) Unblock(ctx context.Context, id int64) error {
	return g.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/blocked-ips/%d", id), nil)
}

func (g *Gateway) do(ctx context.Context, method, path string, out any) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("moderation: read credential: %w", err)
	}
	if token == "" {
		return ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+path, nil)
	if err != nil {
		return fmt.Errorf("moderation: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("moderation: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("moderation: decode response: %w", err)
		}
	}
	return nil
}

// Error carries the server-provided message of a failed moderation
// call, surfaced to the operator verbatim when available.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("moderation: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("moderation: request failed (status %d)", e.Status)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		msg = body.Error
		if msg == "" {
			msg = body.Message
		}
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}
