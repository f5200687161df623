package cmd

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/theirongolddev/worklog/internal/config"
)

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"daemon", "--detach", "--addr", "127.0.0.1:9", "--detach=true"})
	want := []string{"daemon", "--addr", "127.0.0.1:9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterDetachArg = %v, want %v", got, want)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worklogd.pid")
	if err := writePID(path, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	pid, err := readPID(path)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("readPID = %d, %v", pid, err)
	}
	if !processAlive(pid) {
		t.Error("current process should be alive")
	}
	if err := ensureDaemonNotRunning(path); err == nil {
		t.Error("expected already-running error for a live pid")
	}

	if err := os.WriteFile(path, []byte("nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readPID(path); err == nil {
		t.Error("expected error for a malformed pid file")
	}
}

func TestStateFileRoundTrip(t *testing.T) {
	path := statePath(filepath.Join(t.TempDir(), "worklogd.pid"))
	want := daemonRuntimeState{PID: 42, Addr: "127.0.0.1:8797", StartedAt: time.Now().UTC().Truncate(time.Second), DBPath: "/tmp/w.db"}
	if err := writeState(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := readState(path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.StartedAt.Equal(want.StartedAt) || got.PID != want.PID || got.Addr != want.Addr {
		t.Errorf("readState = %+v, want %+v", got, want)
	}
}

func TestBuildDaemonWiresComponents(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("WORKLOG_SYNC_ENDPOINT", "http://127.0.0.1:1/batch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flagAddr = "127.0.0.1:0"
	svc, cleanup, err := buildDaemon(ctx, config.DefaultConfig(), setupLogger(os.Stderr, false))
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if svc.Handler() == nil {
		t.Fatal("nil handler")
	}
	if _, err := os.Stat(config.DBPath()); err != nil {
		t.Errorf("store not created: %v", err)
	}
}
