package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/medisync/internal/voice"
)

// ErrStaleResult is returned when an extraction finishes after its capture
// was superseded by a newer one or the desk was reset.
var ErrStaleResult = errors.New("intake: result belongs to a superseded capture")

// Ticket identifies one capture on a Desk.
type Ticket uint64

// Capturer is the voice session as seen by the desk. onStart runs only when
// the capture is accepted.
type Capturer interface {
	CaptureWith(ctx context.Context, onStart func()) (voice.Result, error)
}

// Desk is one operator's booking context: the live form plus a generation
// counter that fences late extraction results.
type Desk struct {
	id         string
	reconciler *Reconciler

	mu   sync.Mutex
	form AppointmentForm
	gen  uint64
}

func NewDesk(id string, reconciler *Reconciler) *Desk {
	if reconciler == nil {
		panic("intake: reconciler required")
	}
	return &Desk{id: id, reconciler: reconciler}
}

func (d *Desk) ID() string { return d.id }

// Form returns a copy of the live form.
func (d *Desk) Form() AppointmentForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form.clone()
}

// Edit applies a manual change to the form.
func (d *Desk) Edit(fn func(*AppointmentForm)) AppointmentForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.form)
	return d.form.clone()
}

// BeginCapture clears the voice-fillable fields and starts a new
// generation. Results for older tickets are rejected from now on.
func (d *Desk) BeginCapture() Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.form.ClearVoiceFields()
	return Ticket(d.gen)
}

// Reset clears the whole form and invalidates outstanding tickets.
func (d *Desk) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.form = AppointmentForm{}
}

// Reconcile runs extraction outside the lock, then merges into the current
// form if t is still the latest ticket.
func (d *Desk) Reconcile(ctx context.Context, t Ticket, transcript string, now time.Time) (Report, error) {
	var (
		ex  Extraction
		err error
	)
	if strings.TrimSpace(transcript) != "" && d.current(t) {
		ex, err = d.reconciler.Extract(ctx, transcript, now)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if uint64(t) != d.gen {
		d.reconciler.metrics.ObserveReconcile("stale")
		return Report{}, ErrStaleResult
	}
	report := d.reconciler.Merge(d.form, ex, err, transcript)
	d.form = report.Form.clone()
	return report, nil
}

// Listen runs one capture and reconciles its transcript. Captures that end
// without a transcript return an empty report. A start rejected by the
// capturer leaves the form and the current ticket untouched.
func (d *Desk) Listen(ctx context.Context, capturer Capturer, now time.Time) (voice.Result, Report, error) {
	var t Ticket
	res, err := capturer.CaptureWith(ctx, func() { t = d.BeginCapture() })
	if err != nil {
		return res, Report{}, err
	}
	if res.Outcome != voice.OutcomeTranscribed {
		return res, Report{}, nil
	}
	report, err := d.Reconcile(ctx, t, res.Transcript, now)
	return res, report, err
}

func (d *Desk) current(t Ticket) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint64(t) == d.gen
}
