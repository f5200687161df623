// Package metrics adapts the external input-metrics process: it reads the
// process's line-delimited JSON counter events and sends it reset commands.
package metrics

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/theirongolddev/worklog/internal/model"
)

var errUnknownKind = errors.New("unknown event type")

// maxLine bounds a single event line.
const maxLine = 64 * 1024

var resetCommand = []byte(`{"type":"reset"}` + "\n")

// ParseEvent decodes one line of the metrics protocol.
func ParseEvent(line []byte) (model.InputEvent, error) {
	var ev model.InputEvent
	if err := json.Unmarshal(bytes.TrimSpace(line), &ev); err != nil {
		return model.InputEvent{}, fmt.Errorf("parsing event: %w", err)
	}
	if !ev.Valid() {
		return model.InputEvent{}, fmt.Errorf("%w: %q count %d", errUnknownKind, ev.Type, ev.Count)
	}
	return ev, nil
}

// Decode reads events from r until EOF, calling emit for each valid one.
// Blank and malformed lines are skipped and counted in malformed.
func Decode(r io.Reader, emit func(model.InputEvent)) (malformed int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		ev, perr := ParseEvent(line)
		if perr != nil {
			malformed++
			continue
		}
		emit(ev)
	}
	return malformed, sc.Err()
}
