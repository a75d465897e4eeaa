// Package summary produces an end-of-shift summary for a doctor from the
// patients seen that day.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/llm"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

var tracer = otel.Tracer("medisync.internal.summary")

var ErrUnavailable = errors.New("summary: summarizer unavailable")

// Input describes one shift.
type Input struct {
	DoctorName string
	ShiftDate  time.Time
	Patients   []records.Patient
}

// Summary is the model's digest of a shift. PatientCount is always the
// number of patients supplied, whatever the model says.
type Summary struct {
	DoctorName          string `json:"doctorName"`
	ShiftDate           string `json:"shiftDate"`
	PatientCount        int    `json:"patientCount"`
	CommonAilments      string `json:"commonAilments"`
	FrequentMedications string `json:"frequentMedications"`
	Summary             string `json:"summary"`
}

const systemPrompt = `You summarize a doctor's shift. You are given the doctor's name, the shift date and the patient records seen during the shift as JSON.
Answer with one JSON object:
{"patientCount": number, "commonAilments": "comma-separated list", "frequentMedications": "comma-separated list", "summary": "a concise summary with notable patterns or observations"}
Base everything on the records only. Respond with JSON only.`

type Summarizer struct {
	client    llm.Client
	store     *records.Store
	metrics   *metrics.CollaboratorMetrics
	maxTokens int32
	logger    *logging.Logger
}

func NewSummarizer(client llm.Client, store *records.Store, m *metrics.CollaboratorMetrics, logger *logging.Logger) *Summarizer {
	if client == nil {
		panic("summary: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Summarizer{client: client, store: store, metrics: m, maxTokens: 768, logger: logger}
}

// patientRecord is the slice of a patient the model sees.
type patientRecord struct {
	Name          string   `json:"name"`
	Age           int      `json:"age"`
	Diagnosis     string   `json:"diagnosis"`
	Prescriptions []string `json:"prescriptions"`
}

func (s *Summarizer) Summarize(ctx context.Context, in Input) (Summary, error) {
	ctx, span := tracer.Start(ctx, "summary.summarize")
	defer span.End()

	recs := make([]patientRecord, 0, len(in.Patients))
	for _, p := range in.Patients {
		recs = append(recs, patientRecord{Name: p.Name, Age: p.Age, Diagnosis: p.Diagnosis, Prescriptions: p.Prescriptions})
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: marshal records: %w", err)
	}
	date := in.ShiftDate.Format("2006-01-02")
	prompt := fmt.Sprintf("Doctor Name: %s\nShift Date: %s\nPatient Records: %s", in.DoctorName, date, data)

	req := llm.UserPrompt(systemPrompt, prompt)
	req.MaxTokens = s.maxTokens
	start := time.Now()
	resp, err := s.client.Complete(ctx, req)
	s.metrics.Observe("summary", time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var out Summary
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		span.RecordError(err)
		s.logger.Warn("summary response was not json", "error", err)
		return Summary{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if out.PatientCount != len(in.Patients) {
		s.logger.Debug("overriding model patient count", "model", out.PatientCount, "actual", len(in.Patients))
	}
	out.PatientCount = len(in.Patients)
	out.DoctorName = in.DoctorName
	out.ShiftDate = date
	out.CommonAilments = strings.TrimSpace(out.CommonAilments)
	out.FrequentMedications = strings.TrimSpace(out.FrequentMedications)
	out.Summary = strings.TrimSpace(out.Summary)
	return out, nil
}

// ShiftPatients resolves the patients behind a doctor's appointments on the
// given day in loc. Appointments whose patient name matches no stored
// patient contribute a temporary patient. Each name appears once.
func (s *Summarizer) ShiftPatients(ctx context.Context, doctor doctors.Doctor, day time.Time, loc *time.Location) ([]records.Patient, error) {
	if s.store == nil {
		return nil, errors.New("summary: record store not configured")
	}
	if loc == nil {
		loc = s.store.Location()
	}
	appts, err := s.store.AppointmentsForDoctor(ctx, doctor.ID)
	if err != nil {
		return nil, err
	}
	y, m, d := day.In(loc).Date()
	seen := make(map[string]bool)
	var out []records.Patient
	for _, a := range appts {
		ay, am, ad := a.AppointmentDate.In(loc).Date()
		if ay != y || am != m || ad != d {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(a.PatientName))
		if seen[key] {
			continue
		}
		seen[key] = true
		p, _, err := s.store.ResolveAppointmentPatient(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SummarizeShift combines ShiftPatients and Summarize.
func (s *Summarizer) SummarizeShift(ctx context.Context, doctor doctors.Doctor, day time.Time) (Summary, error) {
	patients, err := s.ShiftPatients(ctx, doctor, day, nil)
	if err != nil {
		return Summary{}, err
	}
	return s.Summarize(ctx, Input{DoctorName: doctor.Name, ShiftDate: day.In(s.store.Location()), Patients: patients})
}
