package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/internal/notify"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

// ErrUnknownDoctor is returned when the form names a doctor outside the roster.
var ErrUnknownDoctor = errors.New("intake: selected doctor not found")

// Booker turns a completed form into a scheduled appointment.
type Booker struct {
	store     *records.Store
	roster    *doctors.Roster
	publisher events.Publisher
	notifier  *notify.Service
	metrics   *metrics.WorkflowMetrics
	logger    *logging.Logger
	now       func() time.Time
}

type BookerOption func(*Booker)

func WithPublisher(p events.Publisher) BookerOption {
	return func(b *Booker) {
		if p != nil {
			b.publisher = p
		}
	}
}

func WithNotifier(n *notify.Service) BookerOption {
	return func(b *Booker) { b.notifier = n }
}

func WithBookingMetrics(m *metrics.WorkflowMetrics) BookerOption {
	return func(b *Booker) { b.metrics = m }
}

func NewBooker(store *records.Store, roster *doctors.Roster, logger *logging.Logger, opts ...BookerOption) *Booker {
	if store == nil {
		panic("intake: record store required")
	}
	if roster == nil {
		panic("intake: roster required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	b := &Booker{
		store:     store,
		roster:    roster,
		publisher: events.NopPublisher{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Book validates the form, writes the appointment and then publishes and
// notifies. Publishing and notification failures are logged only.
func (b *Booker) Book(ctx context.Context, form AppointmentForm) (records.Appointment, error) {
	appt, err := b.book(ctx, form)
	b.metrics.ObserveBooking(err)
	return appt, err
}

func (b *Booker) book(ctx context.Context, form AppointmentForm) (records.Appointment, error) {
	ctx, span := tracer.Start(ctx, "intake.book")
	defer span.End()

	in := records.AppointmentInput{
		PatientName: form.PatientName,
		PatientAge:  form.PatientAge,
		Symptoms:    form.Symptoms,
		DoctorID:    form.DoctorID,
	}
	if form.AppointmentDate != nil {
		in.AppointmentDate = *form.AppointmentDate
	}
	if err := in.Validate(); err != nil {
		return records.Appointment{}, err
	}
	doc, err := b.roster.ByID(form.DoctorID)
	if err != nil {
		return records.Appointment{}, fmt.Errorf("%w: %s", ErrUnknownDoctor, form.DoctorID)
	}
	in.DoctorName = doc.Name

	appt, err := b.store.AddAppointment(ctx, in)
	if err != nil {
		span.RecordError(err)
		return records.Appointment{}, err
	}
	b.logger.Info("appointment booked", "appointment_id", appt.ID, "doctor_id", doc.ID)

	evt := events.AppointmentBookedV1{
		AppointmentID:   appt.ID,
		PatientName:     appt.PatientName,
		PatientAge:      appt.PatientAge,
		DoctorID:        doc.ID,
		DoctorName:      doc.Name,
		AppointmentDate: appt.AppointmentDate,
		BookedAt:        b.now().UTC(),
	}
	if _, err := b.publisher.Publish(ctx, "appointment:"+appt.ID, evt); err != nil {
		b.logger.Warn("failed to publish appointment booked", "error", err, "appointment_id", appt.ID)
	}
	if err := b.notifier.NotifyAppointmentBooked(ctx, doc, evt); err != nil {
		b.logger.Warn("doctor notification failed", "error", err, "appointment_id", appt.ID)
	}
	return appt, nil
}
