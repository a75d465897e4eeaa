package events

import "time"

const (
	TypeAppointmentBooked     = "appointment.booked.v1"
	TypeAppointmentCompleted  = "appointment.completed.v1"
	TypePrescriptionCommitted = "prescription.committed.v1"
)

type AppointmentBookedV1 struct {
	AppointmentID   string    `json:"appointment_id"`
	PatientName     string    `json:"patient_name"`
	PatientAge      *int      `json:"patient_age,omitempty"`
	DoctorID        string    `json:"doctor_id"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentDate time.Time `json:"appointment_date"`
	BookedAt        time.Time `json:"booked_at"`
}

func (AppointmentBookedV1) EventType() string { return TypeAppointmentBooked }

type AppointmentCompletedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

func (AppointmentCompletedV1) EventType() string { return TypeAppointmentCompleted }

// PrescriptionCommittedV1 is emitted after a prescription fragment has been
// appended. PromotedFrom carries the temporary id when the commit created
// the patient record.
type PrescriptionCommittedV1 struct {
	PatientID       string    `json:"patient_id"`
	PromotedFrom    string    `json:"promoted_from,omitempty"`
	DoctorID        string    `json:"doctor_id,omitempty"`
	MedicationCount int       `json:"medication_count"`
	ArchiveKey      string    `json:"archive_key,omitempty"`
	PrescribedAt    time.Time `json:"prescribed_at"`
}

func (PrescriptionCommittedV1) EventType() string { return TypePrescriptionCommitted }
