// Package screenshot runs an external capture command and names the
// resulting image artifacts.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PathPlaceholder is replaced in the capture command with the output file.
const PathPlaceholder = "{path}"

// ErrNoCommand is returned when no capture command is configured.
var ErrNoCommand = errors.New("screenshot: no capture command configured")

// Artifact identifies one captured image.
type Artifact struct {
	ID   string // random id, also the file stem
	Name string // file name stored on session records
	Path string // absolute location on disk
}

// Capturer produces one image artifact per call.
type Capturer interface {
	Capture(ctx context.Context) (Artifact, error)
}

// CommandCapturer shells out to a capture tool.
type CommandCapturer struct {
	Dir     string
	Argv    []string
	Timeout time.Duration
	Ext     string

	Logger *slog.Logger
}

// Capture runs the command with a fresh output path and checks the file
// was written.
func (c *CommandCapturer) Capture(ctx context.Context) (Artifact, error) {
	if len(c.Argv) == 0 {
		return Artifact{}, ErrNoCommand
	}
	if err := os.MkdirAll(c.Dir, 0o750); err != nil {
		return Artifact{}, fmt.Errorf("creating screenshot dir: %w", err)
	}

	ext := c.Ext
	if ext == "" {
		ext = ".png"
	}
	id := uuid.NewString()
	art := Artifact{ID: id, Name: id + ext}
	art.Path = filepath.Join(c.Dir, art.Name)

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	argv := expand(c.Argv, art.Path)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // command comes from the user's config
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(art.Path)
		return Artifact{}, fmt.Errorf("capture command: %w: %s", err, strings.TrimSpace(string(out)))
	}

	fi, err := os.Stat(art.Path)
	if err != nil {
		return Artifact{}, fmt.Errorf("capture produced no file: %w", err)
	}
	if fi.Size() == 0 {
		_ = os.Remove(art.Path)
		return Artifact{}, errors.New("capture produced an empty file")
	}

	if c.Logger != nil {
		c.Logger.Debug("screenshot captured", "name", art.Name, "bytes", fi.Size())
	}
	return art, nil
}

func expand(argv []string, path string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, PathPlaceholder, path)
	}
	return out
}

// Resolve joins stored artifact names onto dir, dropping empty names.
func Resolve(dir string, names []string) []string {
	paths := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n == "" {
			continue
		}
		paths = append(paths, filepath.Join(dir, filepath.Base(n)))
	}
	return paths
}
