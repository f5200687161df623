package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/theirongolddev/worklog/internal/model"
)

// ErrNotRunning is returned by Reset when no process is attached.
var ErrNotRunning = errors.New("metrics: process not running")

// Process runs the input-metrics command and exposes its events on a
// bounded channel. When the consumer falls behind, events are dropped;
// counts are cumulative so a later event carries the lost increments.
type Process struct {
	argv   []string
	buffer int
	logger *slog.Logger

	mu     sync.Mutex
	stdin  io.WriteCloser
	stdout io.ReadCloser
	out    chan model.InputEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProcess returns an adapter for the given command line.
func NewProcess(argv []string, buffer int, logger *slog.Logger) *Process {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{argv: argv, buffer: buffer, logger: logger}
}

// Start launches the command. The returned channel is closed when the
// process exits or Stop is called. Starting while a previous process is
// still attached stops that one first.
func (p *Process) Start(ctx context.Context) (<-chan model.InputEvent, error) {
	if len(p.argv) == 0 {
		return nil, errors.New("metrics: no command configured")
	}
	_ = p.Stop()

	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, p.argv[0], p.argv[1:]...) //nolint:gosec // command comes from the user's config
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("metrics stdout: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("metrics stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", p.argv[0], err)
	}

	out := make(chan model.InputEvent, p.buffer)
	done := make(chan struct{})

	p.mu.Lock()
	p.stdin = stdin
	p.stdout = stdout
	p.out = out
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.logger.Info("metrics process started", "cmd", p.argv[0], "pid", cmd.Process.Pid)

	go func() {
		defer close(done)

		dropped := 0
		malformed, rerr := Decode(stdout, func(ev model.InputEvent) {
			p.mu.Lock()
			defer p.mu.Unlock()
			select {
			case p.out <- ev:
			default:
				dropped++
			}
		})
		werr := cmd.Wait()

		attrs := []any{"malformed", malformed, "dropped", dropped}
		if rerr != nil {
			attrs = append(attrs, "read_error", rerr)
		}
		if werr != nil && cctx.Err() == nil {
			p.logger.Warn("metrics process exited", append(attrs, "err", werr)...)
		} else {
			p.logger.Info("metrics process stopped", attrs...)
		}

		p.mu.Lock()
		close(p.out)
		if p.done == done {
			p.stdin = nil
			p.stdout = nil
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel()
	}()

	return out, nil
}

// Reset tells the process to zero its counters. Events read from then on
// go to the returned channel; the previous one is closed, so counts still
// queued from before the reset can be told apart and discarded.
func (p *Process) Reset() (<-chan model.InputEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return nil, ErrNotRunning
	}
	if _, err := p.stdin.Write(resetCommand); err != nil {
		return nil, fmt.Errorf("sending reset: %w", err)
	}
	close(p.out)
	p.out = make(chan model.InputEvent, p.buffer)
	return p.out, nil
}

// Stop kills the process if one is attached and waits for its reader to
// finish. It is safe to call when nothing is running.
func (p *Process) Stop() error {
	p.mu.Lock()
	cancel, done, stdin, stdout := p.cancel, p.done, p.stdin, p.stdout
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	if stdin != nil {
		_ = stdin.Close()
	}
	cancel()
	// A grandchild may still hold the write end open.
	if stdout != nil {
		_ = stdout.Close()
	}
	<-done
	return nil
}
