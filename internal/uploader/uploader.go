// Package uploader delivers pending session records to the remote service
// and marks them synced once the remote has accepted them.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/theirongolddev/worklog/internal/model"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	userAgent      = "github.com/theirongolddev/worklog/1.0"
)

var (
	// ErrNotAuthenticated indicates there is no usable access token.
	ErrNotAuthenticated = errors.New("uploader: not authenticated")
	// ErrSyncInProgress is returned when another Sync has not finished.
	ErrSyncInProgress = errors.New("uploader: sync already in progress")
	// ErrRejected indicates the remote answered but did not accept the batch.
	ErrRejected = errors.New("uploader: batch rejected")
)

// RecordStore is the slice of the local store the uploader needs.
type RecordStore interface {
	PendingRecords(ctx context.Context) ([]model.SessionRecord, error)
	MarkSynced(ctx context.Context, ids []int64) (int64, error)
}

// Result describes a completed sync.
type Result struct {
	Uploaded int    `json:"uploaded"`
	Message  string `json:"message"`
}

// Uploader sends the pending batch in one authenticated request. At most
// one Sync runs at a time.
type Uploader struct {
	store    RecordStore
	tokens   oauth2.TokenSource
	endpoint string
	timeout  time.Duration
	http     *http.Client
	logger   *slog.Logger

	mu sync.Mutex
}

// Options configures an Uploader.
type Options struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New returns an uploader draining store to opts.Endpoint.
func New(store RecordStore, tokens oauth2.TokenSource, opts Options) *Uploader {
	u := &Uploader{
		store:    store,
		tokens:   tokens,
		endpoint: opts.Endpoint,
		timeout:  opts.Timeout,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
	}
	if u.timeout <= 0 {
		u.timeout = defaultTimeout
	}
	if u.http == nil {
		u.http = &http.Client{}
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	return u
}

// Sync uploads every pending record. On success exactly the submitted
// records become synced; on any failure none do. A call made while another
// is in flight returns ErrSyncInProgress without touching anything.
//
// A started sync runs to completion even if ctx is cancelled, so a batch the
// remote accepted is always marked; the per-request timeout bounds it.
func (u *Uploader) Sync(ctx context.Context) (Result, error) {
	if !u.mu.TryLock() {
		return Result{}, ErrSyncInProgress
	}
	defer u.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	tok, err := u.token()
	if err != nil {
		return Result{}, err
	}

	pending, err := u.store.PendingRecords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("uploader: reading pending records: %w", err)
	}
	if len(pending) == 0 {
		return Result{Message: "nothing to upload"}, nil
	}

	batch := Batch{Data: make([]Entry, len(pending))}
	ids := make([]int64, len(pending))
	for i, rec := range pending {
		batch.Data[i] = NewEntry(rec)
		ids[i] = rec.ID
	}

	resp, err := u.post(ctx, tok, batch)
	if err != nil {
		u.logger.Warn("sync failed", "records", len(ids), "err", err)
		return Result{}, err
	}

	changed, err := u.store.MarkSynced(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("uploader: marking records synced: %w", err)
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("uploaded %d records", len(ids))
	}
	u.logger.Info("sync complete", "records", len(ids), "marked", changed)
	return Result{Uploaded: len(ids), Message: msg}, nil
}

func (u *Uploader) token() (*oauth2.Token, error) {
	if u.tokens == nil {
		return nil, ErrNotAuthenticated
	}
	tok, err := u.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if !tok.Valid() {
		return nil, ErrNotAuthenticated
	}
	return tok, nil
}

// post submits the batch and returns the decoded reply when the remote
// accepted it.
func (u *Uploader) post(ctx context.Context, tok *oauth2.Token, batch Batch) (*Response, error) {
	if u.endpoint == "" {
		return nil, errors.New("uploader: no endpoint configured")
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("uploader: encoding batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("uploader: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	tok.SetAuthHeader(req)

	//nolint:gosec // endpoint comes from the user's config
	resp, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploader: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("uploader: reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrNotAuthenticated
	}

	var reply Response
	decodeErr := json.Unmarshal(raw, &reply)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, reply.describe())
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: unreadable reply: %v", ErrRejected, decodeErr)
	}
	if reply.Status != "success" {
		return nil, fmt.Errorf("%w: status %q: %s", ErrRejected, reply.Status, reply.describe())
	}
	return &reply, nil
}

func (r Response) describe() string {
	switch {
	case r.Message != "" && r.Error != "":
		return r.Message + " (" + r.Error + ")"
	case r.Message != "":
		return r.Message
	case r.Error != "":
		return r.Error
	}
	return "no message"
}
