// Package client is a Go client for the tensorkv HTTP API. It wraps the
// six service operations, computes integrity fields on the way out, and
// maps wire failures back onto errors callers can branch on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/dtype"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// ErrNotFound is reported for gets and deletes of absent keys and for
// operations naming an unknown store.
var ErrNotFound = errors.New("not found")

// APIError is a non-success response from the service, carrying the HTTP
// status and the server's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tensorkv: %s (http %d)", e.Message, e.Status)
}

// StoreInfo describes one store, as reported by the service.
type StoreInfo struct {
	Name     string `json:"name"`
	Position uint64 `json:"position"`
	Range    uint64 `json:"range"`
	Keys     int    `json:"keys"`
	Bytes    uint64 `json:"bytes"`
}

// Client talks to one tensorkv instance. Safe for concurrent use.
type Client struct {
	base      string
	http      *http.Client
	chunkSize int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithChunkSize overrides the chunk capacity used when splitting payloads.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// New creates a client for the service at base, e.g. "http://10.0.0.5:8080".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(base, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		chunkSize: tensor.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateStore creates a store owning position of a key space split rng ways.
func (c *Client) CreateStore(ctx context.Context, name string, position, rng uint64) error {
	body := struct {
		Name     string `json:"name"`
		Position uint64 `json:"position"`
		Range    uint64 `json:"range"`
	}{name, position, rng}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodPost, "/api/v1/stores", body, &out)
}

// Put stores a fully formed value under key. Most callers want PutPayload,
// which computes the integrity fields itself.
func (c *Client) Put(ctx context.Context, store string, key uint64, v *tensor.Value) error {
	body := struct {
		Value *tensor.Value `json:"value"`
	}{v}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodPut, c.keyPath(store, key), body, &out)
}

// PutPayload validates payload against shape and dt, computes size_check
// and key_check, splits the payload into chunks and stores it under key.
func (c *Client) PutPayload(
	ctx context.Context, store string, key uint64,
	shape []uint64, dt dtype.T, payload []byte,
) error {
	size, err := tensor.ExpectedSize(shape, dt)
	if err != nil {
		return err
	}
	if uint64(len(payload)) != size {
		return errors.Newf("payload is %d bytes but shape %v of %s implies %d",
			len(payload), shape, dt, size)
	}
	return c.Put(ctx, store, key, &tensor.Value{
		Shape:     shape,
		DType:     dt,
		SizeCheck: size,
		KeyCheck:  tensor.Fingerprint(key, payload),
		Data:      tensor.Split(payload, c.chunkSize),
	})
}

// Get fetches the value stored under key. An absent key is ErrNotFound.
func (c *Client) Get(ctx context.Context, store string, key uint64) (*tensor.Value, error) {
	var out struct {
		Value   *tensor.Value `json:"value"`
		Success bool          `json:"success"`
		Message string        `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, c.keyPath(store, key), nil, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		// Defensive: a success response always carries a value.
		return nil, errors.Wrapf(ErrNotFound, "key %d", key)
	}
	return out.Value, nil
}

// Delete removes the value stored under key. An absent key is ErrNotFound.
func (c *Client) Delete(ctx context.Context, store string, key uint64) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodDelete, c.keyPath(store, key), nil, &out)
}

// List returns a snapshot of the keys in store.
func (c *Client) List(ctx context.Context, store string) ([]uint64, error) {
	var out struct {
		Keys    []uint64 `json:"keys"`
		Count   uint32   `json:"count"`
		Success bool     `json:"success"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/stores/"+store+"/keys", nil, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

// Stores describes every store on the instance.
func (c *Client) Stores(ctx context.Context) ([]StoreInfo, error) {
	var out struct {
		Stores  []StoreInfo `json:"stores"`
		Success bool        `json:"success"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/stores", nil, &out); err != nil {
		return nil, err
	}
	return out.Stores, nil
}

// Health returns the service's health descriptor.
func (c *Client) Health(ctx context.Context) (status, service string, err error) {
	var out struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return "", "", err
	}
	return out.Status, out.Service, nil
}

func (c *Client) keyPath(store string, key uint64) string {
	return fmt.Sprintf("/api/v1/stores/%s/keys/%d", store, key)
}

// do issues one JSON request and decodes the response into out. Responses
// outside 2xx become an APIError carrying the server's message; 404s are
// additionally marked ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(raw)}
		var failure struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Message != "" {
			apiErr.Message = failure.Message
		}
		if resp.StatusCode == http.StatusNotFound {
			return errors.Mark(apiErr, ErrNotFound)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
