package records

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medisync/pkg/logging"
)

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func newEmulatorBackend(t *testing.T) *FirestoreBackend {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "medisync-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewFirestoreBackend(client, logging.Discard())
}

func TestFirestoreBackendRoundTrip(t *testing.T) {
	backend := newEmulatorBackend(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := backend.CreatePatient(ctx, Patient{Name: "Kavya Iyer", Age: 31, CreatedAt: created})
	require.NoError(t, err)

	require.NoError(t, backend.AppendPrescription(ctx, id, "Prescribed on: 2024-06-15 at 09:30"))
	require.NoError(t, backend.AppendPrescription(ctx, id, "Prescribed on: 2024-06-16 at 10:00"))

	got, err := backend.GetPatient(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Kavya Iyer", got.Name)
	assert.Equal(t, created, got.CreatedAt)
	assert.Len(t, got.Prescriptions, 2)

	_, err = backend.GetPatient(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.ErrorIs(t, backend.AppendPrescription(ctx, "does-not-exist", "x"), ErrPatientNotFound)
}

func TestFirestoreBackendAppointments(t *testing.T) {
	backend := newEmulatorBackend(t)
	ctx := context.Background()

	id, err := backend.CreateAppointment(ctx, Appointment{
		PatientName:     "Sarah Connor",
		Symptoms:        "sore throat",
		DoctorID:        "doc1",
		AppointmentDate: time.Date(2023, 10, 31, 14, 30, 0, 0, time.UTC),
		Status:          StatusScheduled,
	})
	require.NoError(t, err)
	require.NoError(t, backend.UpdateAppointmentStatus(ctx, id, StatusCompleted))

	all, err := backend.ListAppointments(ctx)
	require.NoError(t, err)
	var found bool
	for _, a := range all {
		if a.ID == id {
			found = true
			assert.Equal(t, StatusCompleted, a.Status)
		}
	}
	assert.True(t, found)
}
