package core

import (
	"context"
	"fmt"
	"log/slog"
)

// State is the event loop state.
type State int

const (
	StateRunning State = iota
	StateClosing
)

func (s State) String() string {
	if s == StateClosing {
		return "closing"
	}
	return "running"
}

type Signal int

const (
	SignalRedraw Signal = iota
	SignalClose
	SignalResize
)

func (s Signal) String() string {
	switch s {
	case SignalRedraw:
		return "redraw"
	case SignalClose:
		return "close"
	case SignalResize:
		return "resize"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// Event is one signal from a window. Width and Height are set for resizes.
type Event struct {
	Signal Signal
	Width  int
	Height int
}

// SignalSource is polled once per loop iteration.
type SignalSource interface {
	Poll() []Event
}

// EventLoop drives a render function from window signals. Closing is
// terminal: once entered, further signals are ignored.
type EventLoop struct {
	// MaxFrames stops the loop after that many rendered frames. Zero means
	// no limit.
	MaxFrames int
	Logger    *slog.Logger

	state  State
	frames int
}

func NewEventLoop() *EventLoop {
	return &EventLoop{Logger: slog.New(slog.DiscardHandler)}
}

func (l *EventLoop) State() State {
	return l.state
}

// Frames returns the number of render calls made by Run.
func (l *EventLoop) Frames() int {
	return l.frames
}

// Dispatch applies one event and returns the new state. It reports whether
// the event asks for a frame to be rendered.
func (l *EventLoop) Dispatch(ev Event) (State, bool) {
	if l.state == StateClosing {
		return l.state, false
	}
	switch ev.Signal {
	case SignalClose:
		l.state = StateClosing
	case SignalResize:
		l.Logger.Debug("window resized", "width", ev.Width, "height", ev.Height)
	case SignalRedraw:
		return l.state, true
	}
	return l.state, false
}

// Run polls src and calls render for every redraw until the source closes,
// MaxFrames is reached, ctx is done, or render fails.
func (l *EventLoop) Run(ctx context.Context, src SignalSource, render func() error) error {
	for l.state == StateRunning {
		if err := ctx.Err(); err != nil {
			l.state = StateClosing
			return nil
		}
		for _, ev := range src.Poll() {
			_, redraw := l.Dispatch(ev)
			if !redraw {
				continue
			}
			if err := render(); err != nil {
				l.state = StateClosing
				return fmt.Errorf("render frame %d: %w", l.frames, err)
			}
			l.frames++
			if l.MaxFrames > 0 && l.frames >= l.MaxFrames {
				l.Logger.Info("frame limit reached", "frames", l.frames)
				l.state = StateClosing
				return nil
			}
		}
	}
	return nil
}
