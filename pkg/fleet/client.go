// Package fleet talks to the balena (formerly resin) device supervisor that
// manages the station when it runs as part of a fleet.
package fleet

import (
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

// DefaultTimeout bounds each supervisor API call.
const DefaultTimeout = 10 * time.Second

var (
	ErrUnavailable = errors.New("fleet supervisor unavailable")
	ErrRejected    = errors.New("fleet supervisor rejected request")
)

// DeviceState is the subset of GET /v1/device the station cares about.
type DeviceState struct {
	Status        string `json:"status"`
	UpdatePending bool   `json:"update_pending"`
	Commit        string `json:"commit,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
}

// Idle reports whether the device may be powered down.
func (d DeviceState) Idle() bool {
	return !d.UpdatePending && (d.Status == "" || strings.EqualFold(d.Status, "idle"))
}

// Client is a supervisor API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client for the supervisor at address
// (e.g. "http://127.0.0.1:48484").
func NewClient(address, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(address, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Device returns the supervisor's view of the device.
func (c *Client) Device(ctx context.Context) (*DeviceState, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/device", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var state DeviceState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: decode device state: %w", ErrUnavailable, err)
	}
	return &state, nil
}

// Idle reports whether the supervisor is idle with no update pending.
func (c *Client) Idle(ctx context.Context) (bool, error) {
	state, err := c.Device(ctx)
	if err != nil {
		return false, err
	}
	return state.Idle(), nil
}

// Shutdown asks the supervisor to power the device off.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.action(ctx, "/v1/shutdown")
}

// Reboot asks the supervisor to reboot the device.
func (c *Client) Reboot(ctx context.Context) error {
	return c.action(ctx, "/v1/reboot")
}

func (c *Client) action(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodPost, path, strings.NewReader(`{"force":false}`))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path + "?apikey=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrRejected, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
