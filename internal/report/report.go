// Package report renders simulation events for humans or machines.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/signalsfoundry/airspace-simulator/core"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer is a core.EventSink that writes one line per event.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	enc    *json.Encoder
}

// NewWriter returns a Writer for format, which is "text" or "json".
func NewWriter(w io.Writer, format string) (*Writer, error) {
	switch format {
	case FormatText:
		return &Writer{w: w, format: format}, nil
	case FormatJSON:
		return &Writer{w: w, format: format, enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

type eventJSON struct {
	Step      int    `json:"step"`
	Kind      string `json:"kind"`
	AircraftA *int   `json:"aircraft_a,omitempty"`
	AircraftB *int   `json:"aircraft_b,omitempty"`
	Aircraft  *int   `json:"aircraft,omitempty"`
	Band      string `json:"band,omitempty"`
}

func toJSON(e core.Event) eventJSON {
	out := eventJSON{Step: e.Step, Kind: e.Kind.String()}
	switch e.Kind {
	case core.EventCollision:
		a, b := e.AircraftA, e.AircraftB
		out.AircraftA, out.AircraftB = &a, &b
	case core.EventStatus:
		id := e.AircraftA
		out.Aircraft = &id
		out.Band = e.Band.String()
	}
	return out
}

// HandleEvents implements core.EventSink.
func (w *Writer) HandleEvents(ctx context.Context, events []core.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if w.format == FormatJSON {
			err = w.enc.Encode(toJSON(e))
		} else {
			_, err = fmt.Fprintf(w.w, "[step %d] %s\n", e.Step, textLine(e))
		}
		if err != nil {
			return fmt.Errorf("write %s event: %w", e.Kind, err)
		}
	}
	return nil
}

func textLine(e core.Event) string {
	switch e.Kind {
	case core.EventCollision:
		return fmt.Sprintf("Collision detected between aircraft %d and %d!", e.AircraftA, e.AircraftB)
	case core.EventStatus:
		return fmt.Sprintf("Aircraft %d fuel efficiency: %s", e.AircraftA, e.Band)
	default:
		return e.String()
	}
}
