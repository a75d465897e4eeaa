package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/internal/notify"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

type recordingEmail struct {
	sent []notify.EmailMessage
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg notify.EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func newTestBooker(t *testing.T, email notify.EmailSender) (*Booker, *records.Store, *events.MemoryPublisher) {
	t.Helper()
	store := records.NewStore(records.NewMemoryBackend(), logging.Discard())
	pub := events.NewMemoryPublisher()
	b := NewBooker(store, testRoster(), logging.Discard(),
		WithPublisher(pub),
		WithNotifier(notify.NewService(email, time.UTC, logging.Discard())),
	)
	return b, store, pub
}

func bookableForm() AppointmentForm {
	at := time.Date(2023, 10, 31, 14, 30, 0, 0, time.UTC)
	return AppointmentForm{PatientName: "Sarah Connor", PatientAge: intPtr(35), Symptoms: "Sore throat", DoctorID: "doc4", AppointmentDate: &at}
}

func TestBooker_Book(t *testing.T) {
	email := &recordingEmail{}
	b, store, pub := newTestBooker(t, email)

	appt, err := b.Book(context.Background(), bookableForm())
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, "Dr. John Peterson", appt.DoctorName)
	assert.Equal(t, records.StatusScheduled, appt.Status)

	listed, err := store.AppointmentsForDoctor(context.Background(), "doc4")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, appt.ID, listed[0].ID)

	booked := pub.OfType(events.TypeAppointmentBooked)
	require.Len(t, booked, 1)
	assert.Equal(t, "appointment:"+appt.ID, booked[0].Aggregate)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "john.peterson@medisync.now", email.sent[0].To)
}

func TestBooker_Validation(t *testing.T) {
	b, _, pub := newTestBooker(t, &recordingEmail{})

	tests := []struct {
		name   string
		mutate func(*AppointmentForm)
		want   error
	}{
		{"missing name", func(f *AppointmentForm) { f.PatientName = " " }, records.ErrNameRequired},
		{"missing symptoms", func(f *AppointmentForm) { f.Symptoms = "" }, records.ErrSymptomsRequired},
		{"missing doctor", func(f *AppointmentForm) { f.DoctorID = "" }, records.ErrDoctorRequired},
		{"unknown doctor", func(f *AppointmentForm) { f.DoctorID = "doc99" }, ErrUnknownDoctor},
		{"missing date", func(f *AppointmentForm) { f.AppointmentDate = nil }, records.ErrDateRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := bookableForm()
			tt.mutate(&form)
			_, err := b.Book(context.Background(), form)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, pub.Events())
}

func TestBooker_NotificationFailureDoesNotFailBooking(t *testing.T) {
	b, _, _ := newTestBooker(t, &recordingEmail{err: errors.New("smtp down")})
	appt, err := b.Book(context.Background(), bookableForm())
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
}
