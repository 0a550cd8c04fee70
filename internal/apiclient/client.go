// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apiclient talks to the sellout server: JSON over HTTP for reads
// and writes, a WebSocket for the change stream.
package apiclient

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

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sellout/internal/models"
)

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// Unwrap maps well-known statuses onto the shared sentinels so callers can
// use errors.Is without knowing about HTTP.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusConflict:
		return models.ErrDuplicateOrder
	case http.StatusUnprocessableEntity:
		return &models.ValidationError{Field: e.Field, Message: e.Message}
	}
	return nil
}

// Client is a sellout API client. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer

	pingWait time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPingWait sets how long the stream may stay silent before it is
// considered timed out. The server pings every 30s.
func WithPingWait(d time.Duration) Option {
	return func(c *Client) { c.pingWait = d }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse api url: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base:     u,
		http:     &http.Client{Timeout: 15 * time.Second},
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pingWait: 75 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// FetchAll returns every product, hidden ones included.
func (c *Client) FetchAll(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return out, nil
}

// Create inserts a product.
func (c *Client) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPost, "/api/products", in, &out); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &out, nil
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id uuid.UUID, patch models.ProductPatch) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPatch, "/api/products/"+id.String(), patch, &out); err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return &out, nil
}

// Delete removes a product.
func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/api/products/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// TrailingOrderValue returns the order value for a product appended after
// every visible one.
func (c *Client) TrailingOrderValue(ctx context.Context) (float64, error) {
	var out struct {
		OrderSellout float64 `json:"order_sellout"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/products/trailing-order", nil, &out); err != nil {
		return 0, fmt.Errorf("trailing order: %w", err)
	}
	return out.OrderSellout, nil
}

// RebalanceAndMove renumbers the visible list with id at position.
func (c *Client) RebalanceAndMove(ctx context.Context, id uuid.UUID, position int) error {
	body := map[string]any{"id": id, "position": position}
	if err := c.do(ctx, http.MethodPost, "/api/rpc/rebalance-and-move", body, nil); err != nil {
		return fmt.Errorf("rebalance and move: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err == nil {
		apiErr.Message = payload.Error
		apiErr.Field = payload.Field
	} else if len(data) > 0 {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// IsStatus reports whether err is an API error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
