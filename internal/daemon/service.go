// Package daemon provides the long-running tracking agent and its local
// HTTP control surface.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/theirongolddev/worklog/internal/engine"
	"github.com/theirongolddev/worklog/internal/model"
	"github.com/theirongolddev/worklog/internal/report"
	"github.com/theirongolddev/worklog/internal/screenshot"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr          string
	ScreenshotDir string
	Logger        *slog.Logger
}

// Tracker is the engine surface the daemon serves.
type Tracker interface {
	Run(ctx context.Context) error
	StartTracking() model.Outcome
	StopTracking() model.Outcome
	RequestSync(ctx context.Context) model.Outcome
	Status(ctx context.Context) engine.Status
	History(ctx context.Context) ([]model.SessionRecord, error)
	ActivitySummary(ctx context.Context) ([]report.Total, error)
	Events() []engine.Event
	Subscribe(buffer int) (int, <-chan engine.Event)
	Unsubscribe(id int)
}

// Status is served at /v1/status.
type Status struct {
	StartedAt time.Time     `json:"started_at"`
	Addr      string        `json:"addr"`
	Tracking  engine.Status `json:"tracking"`
}

// ReportRecord is a session record with its screenshots resolved to paths.
type ReportRecord struct {
	model.SessionRecord
	ScreenshotPaths []string `json:"screenshot_paths"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg       Config
	tracker   Tracker
	logger    *slog.Logger
	startedAt time.Time
}

// New returns a new daemon service serving tracker.
func New(cfg Config, tracker Tracker) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8797"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		tracker:   tracker,
		logger:    cfg.Logger,
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/tracking/start", s.handleStart)
	mux.HandleFunc("POST /v1/tracking/stop", s.handleStop)
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("GET /v1/reports", s.handleReports)
	mux.HandleFunc("GET /v1/active-times", s.handleActiveTimes)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	return mux
}

// Run serves HTTP and drives the engine until ctx is canceled. The engine
// is given the chance to flush before Run returns.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	engineCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()
	engineDone := make(chan error, 1)
	go func() { engineDone <- s.tracker.Run(engineCtx) }()

	s.logger.Info("daemon listening", "addr", s.cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		stopEngine()
		if eerr := <-engineDone; eerr != nil {
			return eerr
		}
		return err
	case err := <-errCh:
		stopEngine()
		<-engineDone
		return fmt.Errorf("daemon http server: %w", err)
	}
}

func (s *Service) snapshotStatus(ctx context.Context) Status {
	return Status{
		StartedAt: s.startedAt,
		Addr:      s.cfg.Addr,
		Tracking:  s.tracker.Status(ctx),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus(r.Context()))
}

func (s *Service) handleStart(w http.ResponseWriter, _ *http.Request) {
	writeOutcome(w, s.tracker.StartTracking())
}

func (s *Service) handleStop(w http.ResponseWriter, _ *http.Request) {
	writeOutcome(w, s.tracker.StopTracking())
}

func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.tracker.RequestSync(r.Context()))
}

func (s *Service) handleReports(w http.ResponseWriter, r *http.Request) {
	records, err := s.tracker.History(r.Context())
	if err != nil {
		s.logger.Warn("listing records", "err", err)
		writeJSON(w, http.StatusInternalServerError, model.Outcome{Message: err.Error()})
		return
	}

	out := make([]ReportRecord, len(records))
	for i, rec := range records {
		out[i] = ReportRecord{
			SessionRecord:   rec,
			ScreenshotPaths: screenshot.Resolve(s.cfg.ScreenshotDir, rec.ScreenshotRefs),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleActiveTimes(w http.ResponseWriter, r *http.Request) {
	totals, err := s.tracker.ActivitySummary(r.Context())
	if err != nil {
		s.logger.Warn("summarizing activity", "err", err)
		writeJSON(w, http.StatusInternalServerError, model.Outcome{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.tracker.Events()
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, model.Outcome{Message: "since must be an event id"})
			return
		}
		kept := events[:0]
		for _, ev := range events {
			if ev.ID > since {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.tracker.Subscribe(64)
	defer s.tracker.Unsubscribe(id)

	// Send current status immediately.
	writeSSE(w, "status", s.tracker.Status(r.Context()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, ev.Type, ev)
			flusher.Flush()
		}
	}
}

func writeOutcome(w http.ResponseWriter, out model.Outcome) {
	// Control outcomes are always 200; success is carried in the body.
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSSE(w http.ResponseWriter, typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", typ)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
