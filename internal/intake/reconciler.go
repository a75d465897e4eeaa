package intake

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/pkg/logging"
)

var tracer = otel.Tracer("medisync.internal.intake")

// Outcome classifies one aspect of a reconciliation. A single run can
// report several, e.g. Applied together with DoctorNotMatched.
type Outcome string

const (
	OutcomeApplied                 Outcome = "applied"
	OutcomeDoctorNotMatched        Outcome = "doctor_not_matched"
	OutcomePartialDateTime         Outcome = "partial_datetime"
	OutcomeInvalidDateTime         Outcome = "invalid_datetime"
	OutcomeNothingExtracted        Outcome = "nothing_extracted"
	OutcomeCollaboratorUnavailable Outcome = "collaborator_unavailable"
	OutcomeEmptyTranscript         Outcome = "empty_transcript"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Report is the result of merging one transcript into a form.
type Report struct {
	Form          AppointmentForm `json:"form"`
	Outcomes      []Outcome       `json:"outcomes"`
	FieldsUpdated int             `json:"fieldsUpdated"`
	// DoctorQuery is set when the spoken doctor could not be matched.
	DoctorQuery string     `json:"doctorQuery,omitempty"`
	Extraction  Extraction `json:"extraction"`
	Err         error      `json:"-"`
}

// Has reports whether o is among the outcomes.
func (r Report) Has(o Outcome) bool {
	for _, got := range r.Outcomes {
		if got == o {
			return true
		}
	}
	return false
}

// Reconciler merges extraction results into an appointment form.
type Reconciler struct {
	extractor Extractor
	roster    *doctors.Roster
	loc       *time.Location
	metrics   *metrics.WorkflowMetrics
	logger    *logging.Logger
}

type ReconcilerOption func(*Reconciler)

// WithLocation sets the clinic time zone used for the current date and for
// composed appointment times.
func WithLocation(loc *time.Location) ReconcilerOption {
	return func(r *Reconciler) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithMetrics(m *metrics.WorkflowMetrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func NewReconciler(extractor Extractor, roster *doctors.Roster, logger *logging.Logger, opts ...ReconcilerOption) *Reconciler {
	if extractor == nil {
		panic("intake: extractor required")
	}
	if roster == nil {
		panic("intake: roster required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Reconciler{extractor: extractor, roster: roster, loc: time.UTC, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile extracts details from transcript and merges them into form.
// Collaborator failures are reported through the Report, never returned.
func (r *Reconciler) Reconcile(ctx context.Context, form AppointmentForm, transcript string, now time.Time) Report {
	if strings.TrimSpace(transcript) == "" {
		return r.Merge(form, Extraction{}, nil, transcript)
	}
	ex, err := r.Extract(ctx, transcript, now)
	return r.Merge(form, ex, err, transcript)
}

// Extract calls the collaborator. Errors wrap ErrCollaboratorUnavailable.
func (r *Reconciler) Extract(ctx context.Context, transcript string, now time.Time) (Extraction, error) {
	ctx, span := tracer.Start(ctx, "intake.extract", trace.WithAttributes(
		attribute.Int("intake.transcript_length", len(transcript)),
	))
	defer span.End()

	ex, err := r.extractor.Extract(ctx, ExtractionRequest{
		Transcript:  strings.TrimSpace(transcript),
		CurrentDate: now.In(r.loc).Format(dateLayout),
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("transcript extraction failed", "error", err)
		return Extraction{}, fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err)
	}
	return ex, nil
}

// Merge applies ex to form. Only fields present in ex overwrite; everything
// else keeps the operator's values. When extraction failed or nothing was
// applied, the raw transcript goes into symptoms.
func (r *Reconciler) Merge(form AppointmentForm, ex Extraction, extractErr error, transcript string) Report {
	report := Report{Form: form.clone(), Extraction: ex}
	defer r.observe(&report)

	raw := strings.TrimSpace(transcript)
	if raw == "" {
		report.Outcomes = []Outcome{OutcomeEmptyTranscript}
		return report
	}
	if extractErr != nil {
		report.Form.Symptoms = capitalizeFirst(raw)
		report.Outcomes = []Outcome{OutcomeCollaboratorUnavailable, OutcomeNothingExtracted}
		report.Err = extractErr
		return report
	}

	var notes []Outcome
	f := &report.Form
	n := 0

	if present(ex.PatientName) {
		f.PatientName = capitalizeName(strings.TrimSpace(*ex.PatientName))
		n++
	}
	if ex.PatientAge != nil {
		age := *ex.PatientAge
		f.PatientAge = &age
		n++
	}
	if present(ex.Symptoms) {
		f.Symptoms = capitalizeFirst(strings.TrimSpace(*ex.Symptoms))
		n++
	}
	if present(ex.DoctorQuery) {
		if doc, ok := r.roster.MatchQuery(*ex.DoctorQuery); ok {
			f.DoctorID = doc.ID
			n++
		} else {
			report.DoctorQuery = strings.TrimSpace(*ex.DoctorQuery)
			notes = append(notes, OutcomeDoctorNotMatched)
		}
	}

	hasDate, hasTime := present(ex.AppointmentDate), present(ex.AppointmentTime)
	switch {
	case hasDate && hasTime:
		if at, ok := composeDateTime(*ex.AppointmentDate, *ex.AppointmentTime, r.loc); ok {
			f.AppointmentDate = &at
			n++
		} else {
			notes = append(notes, OutcomeInvalidDateTime)
		}
	case hasDate || hasTime:
		notes = append(notes, OutcomePartialDateTime)
	}

	report.FieldsUpdated = n
	if n > 0 {
		report.Outcomes = append([]Outcome{OutcomeApplied}, notes...)
		return report
	}
	f.Symptoms = capitalizeFirst(raw)
	report.Outcomes = append(notes, OutcomeNothingExtracted)
	return report
}

func (r *Reconciler) observe(report *Report) {
	for _, o := range report.Outcomes {
		r.metrics.ObserveReconcile(string(o))
	}
}

// composeDateTime joins a YYYY-MM-DD date and an HH:MM time in loc. Both
// must be lexically well formed and name a real calendar instant.
func composeDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if !datePattern.MatchString(date) || !timePattern.MatchString(clock) {
		return time.Time{}, false
	}
	at, err := time.ParseInLocation(dateTimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// capitalizeName lower-cases the name and upper-cases the first letter of
// every word.
func capitalizeName(name string) string {
	runes := []rune(strings.ToLower(name))
	prevWord := false
	for i, r := range runes {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
		if isWord && !prevWord {
			runes[i] = unicode.ToUpper(r)
		}
		prevWord = isWord
	}
	return string(runes)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
