// Package client is the typed HTTP client for the daemon's admin API, used
// by wabotctl and wabottui.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/wabot/internal/api"
)

// Client talks to a running daemon over its admin HTTP listener.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the daemon at addr (host:port or a full URL).
func New(addr string) *Client {
	base := addr
	if base == "" {
		base = "127.0.0.1:8080"
	}
	if base[0] == ':' {
		base = "127.0.0.1" + base
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches daemon state and store counters.
func (c *Client) Status(ctx context.Context) (*api.Status, error) {
	var st api.Status
	if err := c.get(ctx, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Conversations lists tracked contacts, most recently active first.
func (c *Client) Conversations(ctx context.Context, limit, offset int) ([]api.Conversation, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var convs []api.Conversation
	if err := c.get(ctx, "/v1/conversations", q, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// Messages returns history for a contact, newest first. before is a unix ms
// cursor; 0 means from the top.
func (c *Client) Messages(ctx context.Context, contactID string, before int64, limit int) ([]api.Message, error) {
	q := url.Values{}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var msgs []api.Message
	if err := c.get(ctx, "/v1/conversations/"+url.PathEscape(contactID)+"/messages", q, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Send delivers an operator message to a contact.
func (c *Client) Send(ctx context.Context, contactID, text string) error {
	body, err := json.Marshal(api.SendMessageRequest{Text: text})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(contactID)+"/messages", body, nil)
}

// MarkRead resets a contact's unread counter.
func (c *Client) MarkRead(ctx context.Context, contactID string) error {
	return c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(contactID)+"/read", nil, nil)
}

// Delete removes a conversation and its history.
func (c *Client) Delete(ctx context.Context, contactID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/conversations/"+url.PathEscape(contactID), nil, nil)
}

// Search runs a full-text query over message bodies. contactID may be empty.
func (c *Client) Search(ctx context.Context, query, contactID string, limit int) ([]api.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	if contactID != "" {
		q.Set("contact", contactID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var results []api.SearchResult
	if err := c.get(ctx, "/v1/search", q, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	p := path
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, p, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
