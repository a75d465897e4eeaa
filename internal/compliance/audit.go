// Package compliance keeps an append-only clinical audit trail.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of clinical event.
type AuditEventType string

const (
	EventPrescriptionCommitted AuditEventType = "clinical.prescription_committed"
	EventPatientPromoted       AuditEventType = "clinical.patient_promoted"
	// EventPromotionOrphaned records a persistent patient created by a
	// promotion whose prescription append failed.
	EventPromotionOrphaned   AuditEventType = "clinical.promotion_orphaned"
	EventPatientUpdated      AuditEventType = "clinical.patient_updated"
	EventAppointmentComplete AuditEventType = "clinical.appointment_completed"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	PatientID     string          `json:"patient_id,omitempty"`
	DoctorID      string          `json:"doctor_id,omitempty"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	Medications   []string        `json:"medications,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// prescription commits
	PromotedFrom  string `json:"promoted_from,omitempty"`
	ArchiveKey    string `json:"archive_key,omitempty"`
	FormatVersion int    `json:"format_version,omitempty"`

	// orphaned promotions
	TemporaryID string `json:"temporary_id,omitempty"`
	Error       string `json:"error,omitempty"`

	// patient edits
	UpdatedFields []string `json:"updated_fields,omitempty"`
}

// AuditService writes audit events to Postgres. A nil service or nil db
// makes every call a no-op.
type AuditService struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

func (s *AuditService) enabled() bool {
	return s != nil && s.db != nil
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if !s.enabled() {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO clinical_audit_events (
			id, event_type, patient_id, doctor_id, appointment_id,
			medications, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.PatientID),
		nullString(event.DoctorID),
		nullString(event.AppointmentID),
		pq.Array(event.Medications),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// PrescriptionCommit describes one committed prescription.
type PrescriptionCommit struct {
	PatientID     string
	DoctorID      string
	PromotedFrom  string
	Medications   []string
	ArchiveKey    string
	FormatVersion int
}

// LogPrescriptionCommitted logs a commit, plus a promotion event when the
// commit created the patient.
func (s *AuditService) LogPrescriptionCommitted(ctx context.Context, c PrescriptionCommit) error {
	if !s.enabled() {
		return nil
	}
	if c.PromotedFrom != "" {
		if err := s.LogEvent(ctx, AuditEvent{
			EventType: EventPatientPromoted,
			PatientID: c.PatientID,
			DoctorID:  c.DoctorID,
			Details:   mustDetails(AuditDetails{PromotedFrom: c.PromotedFrom}),
		}); err != nil {
			return err
		}
	}
	return s.LogEvent(ctx, AuditEvent{
		EventType:   EventPrescriptionCommitted,
		PatientID:   c.PatientID,
		DoctorID:    c.DoctorID,
		Medications: c.Medications,
		Details: mustDetails(AuditDetails{
			PromotedFrom:  c.PromotedFrom,
			ArchiveKey:    c.ArchiveKey,
			FormatVersion: c.FormatVersion,
		}),
	})
}

// LogPromotionOrphaned records the persistent id left behind by a failed promotion.
func (s *AuditService) LogPromotionOrphaned(ctx context.Context, temporaryID, orphanID, doctorID string, cause error) error {
	details := AuditDetails{TemporaryID: temporaryID}
	if cause != nil {
		details.Error = cause.Error()
	}
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventPromotionOrphaned,
		PatientID: orphanID,
		DoctorID:  doctorID,
		Details:   mustDetails(details),
	})
}

func (s *AuditService) LogPatientUpdated(ctx context.Context, patientID, doctorID string, fields []string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventPatientUpdated,
		PatientID: patientID,
		DoctorID:  doctorID,
		Details:   mustDetails(AuditDetails{UpdatedFields: fields}),
	})
}

func (s *AuditService) LogAppointmentCompleted(ctx context.Context, appointmentID, doctorID string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventAppointmentComplete,
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
	})
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	PatientID string
	DoctorID  string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// QueryEvents retrieves audit events, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if !s.enabled() {
		return nil, nil
	}
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.DoctorID != "" {
		add("doctor_id = $%d", filter.DoctorID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if !filter.StartTime.IsZero() {
		add("created_at >= $%d", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		add("created_at <= $%d", filter.EndTime)
	}

	query := `
		SELECT id, event_type, patient_id, doctor_id, appointment_id,
			   medications, details, created_at
		FROM clinical_audit_events
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var patientID, doctorID, apptID sql.NullString
		var details []byte
		if err := rows.Scan(
			&e.ID, &e.EventType, &patientID, &doctorID, &apptID,
			pq.Array(&e.Medications), &details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.PatientID = patientID.String
		e.DoctorID = doctorID.String
		e.AppointmentID = apptID.String
		e.Details = details
		events = append(events, e)
	}
	return events, rows.Err()
}

func mustDetails(d AuditDetails) json.RawMessage {
	data, _ := json.Marshal(d)
	return data
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
