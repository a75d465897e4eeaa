package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/pkg/logging"
)

// Service sends clinic notices to doctors. Delivery is best effort; callers
// log the returned error and carry on.
type Service struct {
	email  EmailSender
	loc    *time.Location
	logger *logging.Logger
}

// NewService creates a notification service. A nil sender disables email.
func NewService(email EmailSender, loc *time.Location, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{email: email, loc: loc, logger: logger}
}

// NotifyAppointmentBooked tells the doctor about a new appointment.
func (s *Service) NotifyAppointmentBooked(ctx context.Context, doc doctors.Doctor, evt events.AppointmentBookedV1) error {
	if s == nil || s.email == nil {
		return nil
	}
	if strings.TrimSpace(doc.Email) == "" {
		s.logger.Debug("notify: doctor has no email, skipping", "doctor_id", doc.ID)
		return nil
	}

	when := evt.AppointmentDate.In(s.loc).Format("Monday, January 2 at 3:04 PM")
	age := "not given"
	if evt.PatientAge != nil {
		age = fmt.Sprintf("%d", *evt.PatientAge)
	}
	subject := fmt.Sprintf("New appointment: %s", evt.PatientName)
	body := fmt.Sprintf(`A new appointment has been booked for you.

Patient: %s
Age: %s
When: %s
Appointment ID: %s

MediSync`, evt.PatientName, age, when, evt.AppointmentID)
	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>New appointment</h2>
<p><strong>%s</strong> (age %s) on <strong>%s</strong>.</p>
<p style="color: #6b7280; font-size: 12px;">Appointment ID %s</p>
</div>`, html.EscapeString(evt.PatientName), age, when, html.EscapeString(evt.AppointmentID))

	err := s.email.Send(ctx, EmailMessage{
		To:      doc.Email,
		ToName:  doc.Name,
		Subject: subject,
		Body:    body,
		HTML:    htmlBody,
	})
	if err != nil {
		s.logger.Error("notify: failed to send appointment email", "error", err, "doctor_id", doc.ID)
		return fmt.Errorf("notify: appointment email: %w", err)
	}
	s.logger.Info("notify: appointment email sent", "doctor_id", doc.ID, "appointment_id", evt.AppointmentID)
	return nil
}
