package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

var (
	// ErrSuperseded is returned for a generation whose patient selection
	// changed while it was in flight. Its result is discarded.
	ErrSuperseded = errors.New("suggest: selection changed during generation")
	ErrNoDoctor   = errors.New("suggest: no doctor signed in")
)

// GenerationInput is what the doctor types before asking for a suggestion.
// Empty fields fall back to the selected patient's record.
type GenerationInput struct {
	Symptoms          string `json:"symptoms"`
	Diagnosis         string `json:"diagnosis"`
	DoctorPreferences string `json:"doctorPreferences,omitempty"`
}

// Workbench is one doctor's dashboard context: the signed-in doctor, the
// selected patient and at most one open suggestion session.
type Workbench struct {
	doctor    doctors.Doctor
	generator Generator
	metrics   *metrics.CollaboratorMetrics
	logger    *logging.Logger

	mu        sync.Mutex
	gen       uint64
	selection *records.Patient
	session   *Session
}

type WorkbenchOption func(*Workbench)

func WithGenerationMetrics(m *metrics.CollaboratorMetrics) WorkbenchOption {
	return func(w *Workbench) { w.metrics = m }
}

func NewWorkbench(doctor doctors.Doctor, generator Generator, logger *logging.Logger, opts ...WorkbenchOption) *Workbench {
	if generator == nil {
		panic("suggest: generator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Workbench{doctor: doctor, generator: generator, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workbench) Doctor() doctors.Doctor { return w.doctor }

// Select makes p the current patient. Choosing a different patient closes
// the open session and supersedes in-flight generations; reselecting the
// same patient refreshes the held copy only.
func (w *Workbench) Select(p records.Patient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selection != nil && w.selection.ID == p.ID {
		w.selection = &p
		return
	}
	w.gen++
	w.selection = &p
	w.session = nil
}

// ClearSelection deselects the patient and drops the open session.
func (w *Workbench) ClearSelection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.selection = nil
	w.session = nil
}

func (w *Workbench) Selection() (records.Patient, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selection == nil {
		return records.Patient{}, false
	}
	return *w.selection, true
}

// Session returns the open session, or nil.
func (w *Workbench) Session() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Generate asks the generator for a suggestion for the selected patient and
// opens a session on it. The generator runs without holding the workbench.
func (w *Workbench) Generate(ctx context.Context, in GenerationInput) (*Session, error) {
	if w.doctor.ID == "" {
		return nil, ErrNoDoctor
	}
	w.mu.Lock()
	if w.selection == nil {
		w.mu.Unlock()
		return nil, ErrNoPatient
	}
	patient := *w.selection
	ticket := w.gen
	w.mu.Unlock()

	req := requestFor(patient, w.doctor, in)

	ctx, span := tracer.Start(ctx, "suggest.generate")
	defer span.End()
	span.SetAttributes(attribute.String("medisync.patient_id", patient.ID))

	start := time.Now()
	sug, err := w.generator.Generate(ctx, req)
	w.metrics.Observe("generation", time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		w.logger.Warn("suggestion generation failed", "error", err, "patient_id", patient.ID)
		return nil, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != ticket {
		w.logger.Info("discarding superseded suggestion", "patient_id", patient.ID)
		return nil, ErrSuperseded
	}
	w.session = NewSession(patient, w.doctor, req, sug)
	return w.session, nil
}

// Commit writes the open session through c and adopts the returned patient
// as the selection.
func (w *Workbench) Commit(ctx context.Context, c *Committer) (records.Patient, error) {
	s := w.Session()
	if s == nil {
		return records.Patient{}, ErrNoSession
	}
	updated, err := c.Commit(ctx, s)
	if err != nil {
		return records.Patient{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == s {
		w.session = nil
	}
	if w.selection != nil && w.selection.ID == s.Patient().ID {
		w.selection = &updated
	}
	return updated, nil
}

func requestFor(p records.Patient, doctor doctors.Doctor, in GenerationInput) GenerationRequest {
	symptoms := strings.TrimSpace(in.Symptoms)
	diagnosis := strings.TrimSpace(in.Diagnosis)
	if diagnosis == "" {
		diagnosis = strings.TrimSpace(p.Diagnosis)
	}
	history := strings.TrimSpace(p.History)
	if history == "" {
		history = noHistory
	}
	return GenerationRequest{
		Symptoms:           symptoms,
		Diagnosis:          diagnosis,
		PatientHistory:     history,
		PriorPrescriptions: append([]string(nil), p.Prescriptions...),
		DoctorName:         doctor.Name,
		DoctorPreferences:  strings.TrimSpace(in.DoctorPreferences),
	}
}
