// Package voice implements the single-shot speech capture session and the
// device bridge that relays a browser speech recognizer over a websocket.
package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/wolfman30/medisync/pkg/logging"
)

// ErrCaptureInProgress is returned by Capture while another capture is listening.
var ErrCaptureInProgress = errors.New("voice: capture already in progress")

// State is the capture session state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateTranscribed
	StateNoSpeech
	StateCaptureError
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateTranscribed:
		return "transcribed"
	case StateNoSpeech:
		return "no_speech"
	case StateCaptureError:
		return "capture_error"
	default:
		return "idle"
	}
}

// Outcome is how a single capture ended.
type Outcome string

const (
	OutcomeTranscribed Outcome = "transcribed"
	OutcomeNoSpeech    Outcome = "no_speech"
	OutcomeError       Outcome = "error"
	OutcomeCancelled   Outcome = "cancelled"
)

// Result is the product of one capture. Transcript is set only for
// OutcomeTranscribed; Err only for OutcomeError.
type Result struct {
	Outcome    Outcome
	Transcript string
	Err        error
}

// EventKind identifies a device event.
type EventKind string

const (
	EventTranscript EventKind = "transcript"
	EventNoSpeech   EventKind = "no_speech"
	EventError      EventKind = "error"
)

// DeviceEvent is the single event a device emits per Start.
type DeviceEvent struct {
	Kind       EventKind
	Transcript string
	Err        error
}

// Device is a start/stop speech recognizer. After Start it emits exactly one
// event on the returned channel. The channel must be buffered so an event
// produced after Stop never blocks the device.
type Device interface {
	Start(ctx context.Context) (<-chan DeviceEvent, error)
	Stop() error
}

// Session wraps a Device in the capture state machine:
// Idle, Listening, then one of Transcribed, NoSpeech or CaptureError, then
// back to Idle. Each capture gets a generation number; events that arrive for
// a stopped generation are dropped.
type Session struct {
	device       Device
	logger       *logging.Logger
	onTransition func(from, to State)

	mu         sync.Mutex
	state      State
	generation uint64
	stop       chan struct{}
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithTransitionHook is called, under the session lock, on every state change.
func WithTransitionHook(fn func(from, to State)) SessionOption {
	return func(s *Session) {
		s.onTransition = fn
	}
}

// NewSession creates an idle session over device.
func NewSession(device Device, logger *logging.Logger, opts ...SessionOption) *Session {
	if device == nil {
		panic("voice: device required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Session{device: device, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capture starts the device and blocks until it yields one event, Stop is
// called, or ctx is done. The session is Idle again when Capture returns.
func (s *Session) Capture(ctx context.Context) (Result, error) {
	return s.CaptureWith(ctx, nil)
}

// CaptureWith is Capture with a hook that runs once the session has accepted
// the start and before the device is started. A start rejected with
// ErrCaptureInProgress never runs onStart.
func (s *Session) CaptureWith(ctx context.Context, onStart func()) (Result, error) {
	s.mu.Lock()
	if s.state == StateListening {
		s.mu.Unlock()
		return Result{}, ErrCaptureInProgress
	}
	s.generation++
	gen := s.generation
	stop := make(chan struct{})
	s.stop = stop
	s.transition(StateListening)
	s.mu.Unlock()

	if onStart != nil {
		onStart()
	}

	events, err := s.device.Start(ctx)
	if err != nil {
		return s.finish(gen, DeviceEvent{Kind: EventError, Err: err}), nil
	}

	select {
	case ev, ok := <-events:
		if !ok {
			ev = DeviceEvent{Kind: EventNoSpeech}
		}
		return s.finish(gen, ev), nil
	case <-stop:
		return Result{Outcome: OutcomeCancelled}, nil
	case <-ctx.Done():
		s.Stop()
		return Result{Outcome: OutcomeCancelled, Err: ctx.Err()}, nil
	}
}

// Stop cancels a listening capture. The pending Capture returns
// OutcomeCancelled without a transcript. Stop while idle is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return
	}
	s.generation++
	close(s.stop)
	s.stop = nil
	s.transition(StateIdle)
	s.mu.Unlock()

	if err := s.device.Stop(); err != nil {
		s.logger.Warn("voice device stop failed", "error", err)
	}
}

func (s *Session) finish(gen uint64, ev DeviceEvent) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != StateListening {
		s.logger.Debug("dropping late voice event", "generation", gen, "current", s.generation)
		return Result{Outcome: OutcomeCancelled}
	}
	s.stop = nil

	var res Result
	switch ev.Kind {
	case EventTranscript:
		text := strings.TrimSpace(ev.Transcript)
		if text == "" {
			s.transition(StateNoSpeech)
			res = Result{Outcome: OutcomeNoSpeech}
		} else {
			s.transition(StateTranscribed)
			res = Result{Outcome: OutcomeTranscribed, Transcript: text}
		}
	case EventNoSpeech:
		s.transition(StateNoSpeech)
		res = Result{Outcome: OutcomeNoSpeech}
	default:
		err := ev.Err
		if err == nil {
			err = errors.New("voice: device reported an error")
		}
		s.transition(StateCaptureError)
		res = Result{Outcome: OutcomeError, Err: err}
	}
	s.transition(StateIdle)
	return res
}

func (s *Session) transition(to State) {
	from := s.state
	s.state = to
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}
