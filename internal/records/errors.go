package records

import (
	"errors"
	"fmt"
)

var (
	ErrPatientNotFound     = errors.New("records: patient not found")
	ErrAppointmentNotFound = errors.New("records: appointment not found")

	// ErrTemporaryPatient is returned when a store operation is attempted on a
	// patient that only exists on the client.
	ErrTemporaryPatient = errors.New("records: patient has not been persisted")
	// ErrNotTemporary is returned when promoting a patient that is already persistent.
	ErrNotTemporary = errors.New("records: patient is not temporary")

	ErrInvalidStatusTransition = errors.New("records: invalid appointment status transition")
	ErrInvalidStatus           = errors.New("records: unknown appointment status")

	ErrNameRequired      = errors.New("records: name is required")
	ErrInvalidAge        = errors.New("records: age must not be negative")
	ErrSymptomsRequired  = errors.New("records: symptoms are required")
	ErrDoctorRequired    = errors.New("records: doctor is required")
	ErrDateRequired      = errors.New("records: appointment date is required")
	ErrEmptyPrescription = errors.New("records: prescription text is empty")

	// ErrPromotionPartialFailure marks a promotion whose create step succeeded
	// but whose prescription append failed.
	ErrPromotionPartialFailure = errors.New("records: promotion partially failed")
)

// PromotionError reports a promotion that left a persistent patient without
// the committed prescription. Patient is the orphaned persistent record.
type PromotionError struct {
	TemporaryID string
	Patient     Patient
	Err         error
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("records: promoted %s to %s but prescription append failed: %v", e.TemporaryID, e.Patient.ID, e.Err)
}

func (e *PromotionError) Unwrap() []error {
	return []error{ErrPromotionPartialFailure, e.Err}
}
