package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/theirongolddev/worklog/internal/engine"
	"github.com/theirongolddev/worklog/internal/model"
	"github.com/theirongolddev/worklog/internal/report"
)

const (
	requestTimeout = 10 * time.Second
	syncTimeout    = 2 * time.Minute
	maxBodySize    = 8 << 20 // 8 MB
)

// ErrUnavailable indicates no daemon answered at the configured address.
var ErrUnavailable = errors.New("daemon: not running (start it with `worklog daemon`)")

// Client talks to a running daemon.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the daemon listening on addr.
func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{},
	}
}

// Health reports whether the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", requestTimeout)
	return err
}

// StartTracking asks the daemon to start a session.
func (c *Client) StartTracking(ctx context.Context) (model.Outcome, error) {
	return c.outcome(ctx, "/v1/tracking/start", requestTimeout)
}

// StopTracking asks the daemon to stop the session.
func (c *Client) StopTracking(ctx context.Context) (model.Outcome, error) {
	return c.outcome(ctx, "/v1/tracking/stop", requestTimeout)
}

// Sync asks the daemon to upload pending records now.
func (c *Client) Sync(ctx context.Context) (model.Outcome, error) {
	return c.outcome(ctx, "/v1/sync", syncTimeout)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.getJSON(ctx, "/v1/status", &st)
	return st, err
}

// Reports fetches every record, newest first.
func (c *Client) Reports(ctx context.Context) ([]ReportRecord, error) {
	var recs []ReportRecord
	err := c.getJSON(ctx, "/v1/reports", &recs)
	return recs, err
}

// ActiveTimes fetches the activity-summary windows.
func (c *Client) ActiveTimes(ctx context.Context) ([]report.Total, error) {
	var totals []report.Total
	err := c.getJSON(ctx, "/v1/active-times", &totals)
	return totals, err
}

// Events fetches retained events newer than since.
func (c *Client) Events(ctx context.Context, since int64) ([]engine.Event, error) {
	var events []engine.Event
	err := c.getJSON(ctx, fmt.Sprintf("/v1/events?since=%d", since), &events)
	return events, err
}

// StreamEvent is one server-sent event.
type StreamEvent struct {
	Type string
	Data []byte
}

// Stream follows /v1/stream, calling fn for each event until ctx is
// cancelled or the daemon closes the stream.
func (c *Client) Stream(ctx context.Context, fn func(StreamEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/stream", nil)
	if err != nil {
		return fmt.Errorf("daemon: creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
	}

	err = ReadSSE(resp.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ReadSSE parses a text/event-stream body.
func ReadSSE(r io.Reader, fn func(StreamEvent)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxBodySize)

	var ev StreamEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.Type != "" || len(ev.Data) > 0 {
				if ev.Type == "" {
					ev.Type = "message"
				}
				fn(ev)
			}
			ev = StreamEvent{}
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if len(ev.Data) > 0 {
				ev.Data = append(ev.Data, '\n')
			}
			ev.Data = append(ev.Data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")...)
		}
	}
	return sc.Err()
}

func (c *Client) outcome(ctx context.Context, path string, timeout time.Duration) (model.Outcome, error) {
	body, err := c.do(ctx, http.MethodPost, path, timeout)
	if err != nil {
		return model.Outcome{}, err
	}
	var out model.Outcome
	if err := json.Unmarshal(body, &out); err != nil {
		return model.Outcome{}, fmt.Errorf("daemon: parsing outcome: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, requestTimeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("daemon: parsing %s: %w", path, err)
	}
	return nil
}

// do performs a request and returns the body of a 2xx response. Error
// responses carrying an Outcome have its message surfaced.
func (c *Client) do(ctx context.Context, method, path string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("daemon: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	//nolint:gosec // URL is the local daemon address
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("daemon: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out model.Outcome
		if json.Unmarshal(body, &out) == nil && out.Message != "" {
			return nil, fmt.Errorf("daemon: %s", out.Message)
		}
		return nil, fmt.Errorf("daemon: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("daemon: request failed: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
