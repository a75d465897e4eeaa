// Package records keeps the clinic's patients and appointments synchronized
// with the persistent store. Every write is followed by a full refetch of the
// affected collection; reads are served from the refetched projection.
package records

import (
	"strings"
	"time"
)

// TempIDPrefix marks patients that exist only on the client and have no
// representation in the persistent store.
const TempIDPrefix = "temp-"

// IsTemporaryID reports whether id belongs to a temporary patient.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Patient is a clinic patient. LastActivity is derived on every refetch and is
// never written back to the store.
type Patient struct {
	ID            string    `json:"id" dynamodbav:"id" firestore:"-"`
	Name          string    `json:"name" dynamodbav:"name" firestore:"name"`
	Age           int       `json:"age" dynamodbav:"age" firestore:"age"`
	Diagnosis     string    `json:"diagnosis" dynamodbav:"diagnosis" firestore:"diagnosis"`
	History       string    `json:"history" dynamodbav:"history" firestore:"history"`
	AvatarURL     string    `json:"avatarUrl,omitempty" dynamodbav:"avatarUrl,omitempty" firestore:"avatarUrl,omitempty"`
	Prescriptions []string  `json:"prescriptions" dynamodbav:"prescriptions" firestore:"prescriptions"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"createdAt" firestore:"createdAt"`
	LastActivity  time.Time `json:"lastActivity" dynamodbav:"-" firestore:"-"`
}

// IsTemporary reports whether the patient has not been persisted yet.
func (p Patient) IsTemporary() bool {
	return IsTemporaryID(p.ID)
}

func (p Patient) clone() Patient {
	out := p
	out.Prescriptions = append([]string(nil), p.Prescriptions...)
	return out
}

// PatientInput carries the fields for a new patient.
type PatientInput struct {
	Name          string   `json:"name"`
	Age           int      `json:"age"`
	Diagnosis     string   `json:"diagnosis"`
	History       string   `json:"history"`
	AvatarURL     string   `json:"avatarUrl,omitempty"`
	Prescriptions []string `json:"prescriptions,omitempty"`
}

// Validate checks the input is storable.
func (in PatientInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if in.Age < 0 {
		return ErrInvalidAge
	}
	return nil
}

// PatientUpdate is a partial update; nil fields are left untouched.
// Prescriptions are only ever appended through AppendPrescription.
type PatientUpdate struct {
	Name      *string `json:"name,omitempty"`
	Age       *int    `json:"age,omitempty"`
	Diagnosis *string `json:"diagnosis,omitempty"`
	History   *string `json:"history,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u PatientUpdate) Empty() bool {
	return u.Name == nil && u.Age == nil && u.Diagnosis == nil && u.History == nil && u.AvatarURL == nil
}

// Validate checks the updated values.
func (u PatientUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrNameRequired
	}
	if u.Age != nil && *u.Age < 0 {
		return ErrInvalidAge
	}
	return nil
}

// Apply returns p with the update applied.
func (u PatientUpdate) Apply(p Patient) Patient {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Diagnosis != nil {
		p.Diagnosis = *u.Diagnosis
	}
	if u.History != nil {
		p.History = *u.History
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	return p
}

// AppointmentStatus is the appointment lifecycle state.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an appointment may move from s to next.
// The only supported transition is Scheduled to Completed.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	return s == StatusScheduled && next == StatusCompleted
}

// Appointment is a booked visit. PatientName is free text; it is matched to
// patients by a loose name comparison, never by id.
type Appointment struct {
	ID              string            `json:"id" dynamodbav:"id" firestore:"-"`
	PatientName     string            `json:"patientName" dynamodbav:"patientName" firestore:"patientName"`
	PatientAge      *int              `json:"patientAge,omitempty" dynamodbav:"patientAge,omitempty" firestore:"patientAge,omitempty"`
	Symptoms        string            `json:"symptoms" dynamodbav:"symptoms" firestore:"symptoms"`
	DoctorID        string            `json:"doctorId" dynamodbav:"doctorId" firestore:"doctorId"`
	DoctorName      string            `json:"doctorName" dynamodbav:"doctorName" firestore:"doctorName"`
	AppointmentDate time.Time         `json:"appointmentDate" dynamodbav:"appointmentDate" firestore:"appointmentDate"`
	Status          AppointmentStatus `json:"status" dynamodbav:"status" firestore:"status"`
}

// AppointmentInput carries the fields for a new appointment. New appointments
// are always Scheduled.
type AppointmentInput struct {
	PatientName     string    `json:"patientName"`
	PatientAge      *int      `json:"patientAge,omitempty"`
	Symptoms        string    `json:"symptoms"`
	DoctorID        string    `json:"doctorId"`
	DoctorName      string    `json:"doctorName"`
	AppointmentDate time.Time `json:"appointmentDate"`
}

// Validate checks the input is storable.
func (in AppointmentInput) Validate() error {
	if strings.TrimSpace(in.PatientName) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(in.Symptoms) == "" {
		return ErrSymptomsRequired
	}
	if strings.TrimSpace(in.DoctorID) == "" {
		return ErrDoctorRequired
	}
	if in.AppointmentDate.IsZero() {
		return ErrDateRequired
	}
	if in.PatientAge != nil && *in.PatientAge < 0 {
		return ErrInvalidAge
	}
	return nil
}

// TemporaryPatientFromAppointment synthesizes a client-only patient for an
// appointment whose patient name matches no stored patient.
func TemporaryPatientFromAppointment(appt Appointment, now time.Time) Patient {
	p := Patient{
		ID:            TempIDPrefix + "appointment-" + appt.ID,
		Name:          strings.TrimSpace(appt.PatientName),
		History:       "",
		Prescriptions: []string{},
		CreatedAt:     now.UTC(),
	}
	if appt.PatientAge != nil {
		p.Age = *appt.PatientAge
	}
	if s := strings.TrimSpace(appt.Symptoms); s != "" {
		p.History = "Presented with: " + s
	}
	p.LastActivity = p.CreatedAt
	return p
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
