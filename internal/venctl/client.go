// Package venctl is the client side of the VEN control surface and the
// recorder query API.
package venctl

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

	rhttp "github.com/autopeer-io/vensim/internal/recorder/server/http"
	"github.com/autopeer-io/vensim/internal/ven/command"
	vhttp "github.com/autopeer-io/vensim/internal/ven/server/http"
)

// APIError is a non-2xx answer that carried no acknowledgment.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	base *url.URL
	hc   *http.Client
}

// NewClient returns a Client for the server at rawURL. A bare host:port is
// taken as http.
func NewClient(rawURL string, timeout time.Duration) (*Client, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", rawURL)
	}
	return &Client{base: u, hc: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) State(ctx context.Context) (*vhttp.StateView, error) {
	var v vhttp.StateView
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Circuits(ctx context.Context) ([]vhttp.CircuitView, error) {
	var v []vhttp.CircuitView
	if err := c.do(ctx, http.MethodGet, "/api/circuits", nil, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Client) Toggle(ctx context.Context, circuitID string, enabled bool) (*vhttp.CircuitView, error) {
	body := map[string]any{"circuit_id": circuitID, "enabled": enabled}
	var v vhttp.CircuitView
	if err := c.do(ctx, http.MethodPost, "/api/circuit/toggle", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// TriggerRequest starts a DR event. A zero Duration lets the VEN apply its
// default.
type TriggerRequest struct {
	EventID  string
	ShedKW   float64
	Duration time.Duration
}

// Trigger starts an event. A rejected event still returns its ack together
// with an error.
func (c *Client) Trigger(ctx context.Context, req TriggerRequest) (*command.Ack, error) {
	body := map[string]any{"shed_kw": req.ShedKW}
	if req.EventID != "" {
		body["event_id"] = req.EventID
	}
	if req.Duration > 0 {
		body["duration_sec"] = req.Duration.Seconds()
	}
	return c.ack(ctx, "/api/event/trigger", body)
}

func (c *Client) Restore(ctx context.Context) (*command.Ack, error) {
	return c.ack(ctx, "/api/event/restore", nil)
}

// Events lists the recorded event reports of a VEN. It is served by the
// recorder, not the VEN.
func (c *Client) Events(ctx context.Context, venID string, limit int) ([]rhttp.EventView, error) {
	path := "/api/vens/" + url.PathEscape(venID) + "/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var v []rhttp.EventView
	if err := c.do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Client) ack(ctx context.Context, path string, body any) (*command.Ack, error) {
	var ack command.Ack
	err := c.do(ctx, http.MethodPost, path, body, &ack)
	if err != nil && ack.Status == "" {
		return nil, err
	}
	if !ack.OK() {
		return &ack, fmt.Errorf("command rejected: %s", ack.Error)
	}
	return &ack, nil
}

// do sends the request and decodes the response into out. Error responses
// are decoded into out as well, so callers can inspect an ack.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode/100 != 2 {
		_ = json.Unmarshal(data, out)
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return json.Unmarshal(data, out)
}
