package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// EventKind names one step of a pointer gesture.
type EventKind string

const (
	EventDown EventKind = "down"
	EventMove EventKind = "move"
	EventUp   EventKind = "up"
)

var ErrUnknownEvent = errors.New("unknown pointer event")

// Event is a pointer event as submitted over the API.
type Event struct {
	Kind     EventKind `json:"kind"`
	FieldID  int64     `json:"fieldId,omitempty"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Viewport Viewport  `json:"viewport"`
}

// Replay feeds events through the gesture state machine in order and returns
// the result of every completed gesture.
func (e *Editor) Replay(ctx context.Context, events []Event) ([]Result, error) {
	var results []Result
	for i, ev := range events {
		p := model.Point{X: ev.X, Y: ev.Y}
		switch ev.Kind {
		case EventDown:
			if err := e.PointerDown(ctx, ev.FieldID, p); err != nil {
				return results, fmt.Errorf("event %d: %w", i, err)
			}
		case EventMove:
			if _, err := e.PointerMove(p, ev.Viewport); err != nil {
				return results, fmt.Errorf("event %d: %w", i, err)
			}
		case EventUp:
			res, err := e.PointerUp(ctx)
			if err != nil {
				return results, fmt.Errorf("event %d: %w", i, err)
			}
			results = append(results, res)
		default:
			return results, fmt.Errorf("event %d: %w %q", i, ErrUnknownEvent, ev.Kind)
		}
	}
	return results, nil
}
