package records

import "context"

// PatientBackend is the persistent store for patients. It performs no
// filtering or sorting; List returns the whole collection.
type PatientBackend interface {
	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatient(ctx context.Context, id string) (Patient, error)
	// CreatePatient stores p under a new store-assigned id and returns it.
	CreatePatient(ctx context.Context, p Patient) (string, error)
	UpdatePatient(ctx context.Context, id string, u PatientUpdate) error
	// AppendPrescription appends text to the patient's prescription sequence.
	AppendPrescription(ctx context.Context, id string, text string) error
	// SeedPatients writes patients under their given ids.
	SeedPatients(ctx context.Context, patients []Patient) error
}

// AppointmentBackend is the persistent store for appointments.
type AppointmentBackend interface {
	ListAppointments(ctx context.Context) ([]Appointment, error)
	CreateAppointment(ctx context.Context, a Appointment) (string, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus) error
}

// Backend stores both collections.
type Backend interface {
	PatientBackend
	AppointmentBackend
}
