package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	tests := []struct {
		name  string
		event AuditEvent
	}{
		{
			name: "prescription committed",
			event: AuditEvent{
				EventType:   EventPrescriptionCommitted,
				PatientID:   "p-1",
				DoctorID:    "doc1",
				Medications: []string{"Paracetamol", "Cetirizine"},
			},
		},
		{
			name: "appointment completed",
			event: AuditEvent{
				EventType:     EventAppointmentComplete,
				AppointmentID: "a-1",
				Details:       json.RawMessage(`{"note":"seen"}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("INSERT INTO clinical_audit_events").
				WillReturnResult(sqlmock.NewResult(1, 1))
			assert.NoError(t, service.LogEvent(context.Background(), tt.event))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogPrescriptionCommitted_Promoted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO clinical_audit_events").
		WithArgs(sqlmock.AnyArg(), EventPatientPromoted, "p-9", "doc2", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO clinical_audit_events").
		WithArgs(sqlmock.AnyArg(), EventPrescriptionCommitted, "p-9", "doc2", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewAuditService(db).LogPrescriptionCommitted(context.Background(), PrescriptionCommit{
		PatientID:    "p-9",
		DoctorID:     "doc2",
		PromotedFrom: "temp-appointment-42",
		Medications:  []string{"Amoxicillin"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogPromotionOrphaned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO clinical_audit_events").
		WithArgs(sqlmock.AnyArg(), EventPromotionOrphaned, "p-orphan", "doc1", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewAuditService(db).LogPromotionOrphaned(context.Background(), "temp-appointment-7", "p-orphan", "doc1", errors.New("append failed"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogEventError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO clinical_audit_events").WillReturnError(errors.New("connection reset"))
	err = NewAuditService(db).LogAppointmentCompleted(context.Background(), "a-1", "doc1")
	assert.Error(t, err)
}

func TestAuditService_QueryEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "event_type", "patient_id", "doctor_id", "appointment_id", "medications", "details", "created_at"}).
		AddRow("e-1", string(EventPrescriptionCommitted), "p-1", "doc1", nil, "{Paracetamol,Cetirizine}", []byte(`{"format_version":1}`), now)

	mock.ExpectQuery("SELECT id, event_type, patient_id").
		WithArgs("p-1", EventPrescriptionCommitted).
		WillReturnRows(rows)

	events, err := NewAuditService(db).QueryEvents(context.Background(), AuditFilter{
		PatientID: "p-1",
		EventType: EventPrescriptionCommitted,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "p-1", events[0].PatientID)
	assert.Empty(t, events[0].AppointmentID)
	assert.Equal(t, pq.StringArray{"Paracetamol", "Cetirizine"}, pq.StringArray(events[0].Medications))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_NilIsNoop(t *testing.T) {
	var s *AuditService
	assert.NoError(t, s.LogAppointmentCompleted(context.Background(), "a", "d"))
	events, err := NewAuditService(nil).QueryEvents(context.Background(), AuditFilter{})
	assert.NoError(t, err)
	assert.Nil(t, events)
}
