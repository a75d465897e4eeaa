package records

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBackend(t *testing.T) (*PostgresBackend, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return newPostgresBackendWithQuerier(mock), mock
}

func TestPostgresBackendListPatients(t *testing.T) {
	backend, mock := newMockBackend(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "name", "age", "diagnosis", "history", "avatar_url", "prescriptions", "created_at"}).
		AddRow("1", "Rohan Sharma", 34, "Common Cold", "None", "", []string{"Prescribed on: 2024-06-15 at 09:30"}, created).
		AddRow("2", "Priya Singh", 28, "Migraine", "Allergic to penicillin", "https://placehold.co/100x100.png", []string{}, created)
	mock.ExpectQuery("SELECT id, name, age").WillReturnRows(rows)

	got, err := backend.ListPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Rohan Sharma", got[0].Name)
	assert.Equal(t, 34, got[0].Age)
	assert.Len(t, got[0].Prescriptions, 1)
	assert.Equal(t, "https://placehold.co/100x100.png", got[1].AvatarURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendAppendPrescription(t *testing.T) {
	backend, mock := newMockBackend(t)

	mock.ExpectExec("UPDATE patients SET prescriptions = array_append").
		WithArgs("p1", "Prescribed on: 2024-06-15 at 09:30").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, backend.AppendPrescription(context.Background(), "p1", "Prescribed on: 2024-06-15 at 09:30"))

	mock.ExpectExec("UPDATE patients SET prescriptions = array_append").
		WithArgs("ghost", "x").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, backend.AppendPrescription(context.Background(), "ghost", "x"), ErrPatientNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendCreatePatient(t *testing.T) {
	backend, mock := newMockBackend(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), "Kavya Iyer", 31, "Asthma", "", "", []string{}, created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := backend.CreatePatient(context.Background(), Patient{Name: "Kavya Iyer", Age: 31, Diagnosis: "Asthma", CreatedAt: created})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendUpdatePatientCoalesces(t *testing.T) {
	backend, mock := newMockBackend(t)
	diagnosis := "Chronic Migraine"
	update := PatientUpdate{Diagnosis: &diagnosis}

	mock.ExpectExec("UPDATE patients SET").
		WithArgs("2", update.Name, update.Age, update.Diagnosis, update.History, update.AvatarURL).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, backend.UpdatePatient(context.Background(), "2", update))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendAppointments(t *testing.T) {
	backend, mock := newMockBackend(t)
	when := time.Date(2023, 10, 31, 14, 30, 0, 0, time.UTC)
	age := 35

	rows := pgxmock.NewRows([]string{"id", "patient_name", "patient_age", "symptoms", "doctor_id", "doctor_name", "appointment_date", "status"}).
		AddRow("a1", "Sarah Connor", &age, "sore throat", "doc1", "Dr. Alisha Mehta", when, "Scheduled")
	mock.ExpectQuery("SELECT id, patient_name").WillReturnRows(rows)

	got, err := backend.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusScheduled, got[0].Status)
	require.NotNil(t, got[0].PatientAge)
	assert.Equal(t, 35, *got[0].PatientAge)

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("a1", "Completed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, backend.UpdateAppointmentStatus(context.Background(), "a1", StatusCompleted))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendSeedInTransaction(t *testing.T) {
	backend, mock := newMockBackend(t)
	seed := DefaultSeedPatients(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	for range seed {
		mock.ExpectExec("INSERT INTO patients").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, backend.SeedPatients(context.Background(), seed))
	require.NoError(t, mock.ExpectationsWereMet())
}
