package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Message is the JSON frame exchanged with the browser recognizer.
type Message struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Frame types sent to and received from the browser.
const (
	FrameStart      = "start"
	FrameStop       = "stop"
	FrameTranscript = "transcript"
	FrameNoSpeech   = "no_speech"
	FrameError      = "error"
)

// JSONWriter is the write half of a websocket connection.
type JSONWriter interface {
	WriteJSON(v any) error
}

// WebSocketDevice drives a browser speech recognizer over a websocket. The
// connection's read loop belongs to the caller, which hands recognizer frames
// to Deliver.
type WebSocketDevice struct {
	conn JSONWriter

	writeMu sync.Mutex
	mu      sync.Mutex
	pending chan DeviceEvent
}

var _ Device = (*WebSocketDevice)(nil)

// NewWebSocketDevice wraps the write side of a connection.
func NewWebSocketDevice(conn JSONWriter) *WebSocketDevice {
	if conn == nil {
		panic("voice: websocket connection required")
	}
	return &WebSocketDevice{conn: conn}
}

// Start asks the browser to begin recognition.
func (d *WebSocketDevice) Start(ctx context.Context) (<-chan DeviceEvent, error) {
	ch := make(chan DeviceEvent, 1)
	d.mu.Lock()
	d.pending = ch
	d.mu.Unlock()

	if err := d.write(Message{Type: FrameStart}); err != nil {
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
		return nil, fmt.Errorf("voice: start recognizer: %w", err)
	}
	return ch, nil
}

// Stop asks the browser to abort recognition. Frames arriving afterwards are
// dropped by Deliver.
func (d *WebSocketDevice) Stop() error {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
	return d.write(Message{Type: FrameStop})
}

// Deliver routes a recognizer frame to the active capture. It reports false
// when no capture is waiting or the frame is not a recognizer result.
func (d *WebSocketDevice) Deliver(msg Message) bool {
	var ev DeviceEvent
	switch msg.Type {
	case FrameTranscript:
		ev = DeviceEvent{Kind: EventTranscript, Transcript: msg.Transcript}
	case FrameNoSpeech:
		ev = DeviceEvent{Kind: EventNoSpeech}
	case FrameError:
		text := msg.Error
		if text == "" {
			text = "recognizer error"
		}
		ev = DeviceEvent{Kind: EventError, Err: errors.New("voice: " + text)}
	default:
		return false
	}

	d.mu.Lock()
	ch := d.pending
	d.pending = nil
	d.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- ev
	return true
}

// Send writes an arbitrary frame on the shared connection.
func (d *WebSocketDevice) Send(v any) error {
	return d.write(v)
}

func (d *WebSocketDevice) write(v any) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.conn.WriteJSON(v)
}
