package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/worklog/internal/auth"
	"github.com/theirongolddev/worklog/internal/config"
	"github.com/theirongolddev/worklog/internal/daemon"
	"github.com/theirongolddev/worklog/internal/engine"
	"github.com/theirongolddev/worklog/internal/metrics"
	"github.com/theirongolddev/worklog/internal/screenshot"
	"github.com/theirongolddev/worklog/internal/store"
	"github.com/theirongolddev/worklog/internal/uploader"

	"github.com/spf13/cobra"
)

type daemonRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DBPath    string    `json:"db_path"`
}

var (
	flagDaemonDetach  bool
	flagDaemonPIDFile string
	flagDaemonLogFile string
	flagDaemonChild   bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the tracking agent with its local HTTP/SSE control surface",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon (tracking is flushed first)",
	RunE:  runDaemonStop,
}

func init() {
	defaultPID := filepath.Join(config.DataDir(), "worklogd.pid")
	defaultLog := filepath.Join(config.DataDir(), "worklogd.log")

	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", defaultPID, "PID file path")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	if flagDaemonDetach {
		return startDaemonDetached()
	}

	return runDaemonForeground()
}

func startDaemonDetached() error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}

	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	cmd := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.Stdin = nil
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", flagDaemonPIDFile)
	fmt.Printf("  API: http://%s/v1/status\n", flagAddr)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground() error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(flagDaemonPIDFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagDaemonPIDFile) }()

	state := daemonRuntimeState{
		PID:       pid,
		Addr:      flagAddr,
		StartedAt: time.Now(),
		DBPath:    config.DBPath(),
	}
	_ = writeState(statePath(flagDaemonPIDFile), state)
	defer func() { _ = os.Remove(statePath(flagDaemonPIDFile)) }()

	// The detached child writes to a log file; keep those lines machine readable.
	logger := setupLogger(os.Stderr, flagDaemonChild)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := buildDaemon(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if !flagDaemonChild {
		fmt.Printf("  worklog daemon listening on http://%s\n", flagAddr)
		fmt.Printf("  Records: %s\n", config.DBPath())
		fmt.Printf("  Stop with: worklog daemon stop --pid-file %s\n", flagDaemonPIDFile)
	}

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildDaemon wires the store, credentials, adapters and engine into a
// daemon service. cleanup closes the store.
func buildDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) (*daemon.Service, func(), error) {
	st, err := store.Open(config.DBPath())
	if err != nil {
		return nil, nil, err
	}

	creds := auth.NewFileStore(cfg.CredentialsPath(), logger)
	if err := creds.Load(); err != nil {
		logger.Warn("credentials unreadable, uploads disabled until fixed", "path", creds.Path(), "err", err)
	}
	go func() {
		if err := creds.Watch(ctx); err != nil {
			logger.Warn("credentials watch stopped", "err", err)
		}
	}()

	deps := engine.Deps{
		Store:    st,
		Inputs:   metrics.NewProcess(cfg.Metrics.Command, cfg.Metrics.EventsBuffer, logger),
		Identity: creds,
	}
	if cfg.Tracking.ScreenshotInterval.Duration > 0 && len(cfg.Screenshots.Command) > 0 {
		deps.Capturer = &screenshot.CommandCapturer{
			Dir:     cfg.ScreenshotDir(),
			Argv:    cfg.Screenshots.Command,
			Timeout: cfg.Screenshots.Timeout.Duration,
			Logger:  logger,
		}
	}
	if endpoint := config.SyncEndpoint(cfg); endpoint != "" {
		deps.Syncer = uploader.New(st, creds, uploader.Options{
			Endpoint: endpoint,
			Timeout:  cfg.Sync.Timeout.Duration,
			Logger:   logger,
		})
	} else {
		logger.Info("no sync endpoint configured, records stay local")
	}

	eng := engine.New(engine.Config{
		FlushPeriod:        cfg.Tracking.FlushPeriod.Duration,
		InactivityTimeout:  cfg.Tracking.InactivityTimeout.Duration,
		ScreenshotInterval: cfg.Tracking.ScreenshotInterval.Duration,
		SyncInterval:       cfg.Sync.Interval.Duration,
		EventsBuffer:       cfg.Daemon.EventsBuffer,
		Logger:             logger,
	}, deps)

	svc := daemon.New(daemon.Config{
		Addr:          flagAddr,
		ScreenshotDir: cfg.ScreenshotDir(),
		Logger:        logger,
	}, eng)

	return svc, func() { _ = st.Close() }, nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		fmt.Printf("  Daemon: not running (pid file not found)\n")
		return nil
	}

	if !processAlive(pid) {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := flagAddr
	if st, err := readState(statePath(flagDaemonPIDFile)); err == nil && st.Addr != "" {
		addr = st.Addr
	}

	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := daemon.NewClient(addr).Status(ctx)
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}

	fmt.Printf("  Up since: %s\n", st.StartedAt.Local().Format(time.RFC3339))
	fmt.Printf("  Tracking: %s\n", st.Tracking.State)
	fmt.Printf("  Input source: %s\n", liveLabel(st.Tracking.InputsLive))
	fmt.Printf("  Pending records: %d\n", st.Tracking.PendingRecords)
	fmt.Printf("  Stream subscribers: %d\n", st.Tracking.Subscribers)
	return nil
}

func liveLabel(live bool) string {
	if live {
		return "running"
	}
	return "stopped"
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(flagDaemonPIDFile)
			_ = os.Remove(statePath(flagDaemonPIDFile))
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureDaemonNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	//nolint:gosec // daemon pid path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st daemonRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (daemonRuntimeState, error) {
	var st daemonRuntimeState
	//nolint:gosec // daemon state path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
