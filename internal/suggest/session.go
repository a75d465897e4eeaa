package suggest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/internal/records"
)

var (
	ErrIndexOutOfRange  = errors.New("suggest: medication index out of range")
	ErrUnknownField     = errors.New("suggest: unknown medication field")
	ErrAlreadyCommitted = errors.New("suggest: session already committed")
)

// MedicationField names an editable medication attribute. Values match the
// JSON keys of prescription.Medication.
type MedicationField string

const (
	FieldName                   MedicationField = "name"
	FieldDosage                 MedicationField = "dosage"
	FieldFrequency              MedicationField = "frequency"
	FieldDuration               MedicationField = "duration"
	FieldRoute                  MedicationField = "route"
	FieldAdditionalInstructions MedicationField = "additionalInstructions"
)

// Session is one editable suggestion. The generation request is frozen at
// creation; only the suggestion changes afterwards.
type Session struct {
	id        string
	patient   records.Patient
	doctor    doctors.Doctor
	request   GenerationRequest
	createdAt time.Time

	mu         sync.Mutex
	suggestion prescription.Suggestion
	committed  bool
}

// NewSession deep-copies the request and suggestion.
func NewSession(patient records.Patient, doctor doctors.Doctor, req GenerationRequest, s prescription.Suggestion) *Session {
	s = s.Clone()
	if s.Medications == nil {
		s.Medications = []prescription.Medication{}
	}
	return &Session{
		id:         uuid.NewString(),
		patient:    patient,
		doctor:     doctor,
		request:    req.clone(),
		createdAt:  time.Now().UTC(),
		suggestion: s,
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) Patient() records.Patient { return s.patient }
func (s *Session) Doctor() doctors.Doctor { return s.doctor }
func (s *Session) Request() GenerationRequest { return s.request.clone() }

// Context is the symptoms/diagnosis the suggestion was generated for.
func (s *Session) Context() prescription.GenerationContext {
	return s.request.Context()
}

// Suggestion returns a copy of the current, possibly edited, suggestion.
func (s *Session) Suggestion() prescription.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestion.Clone()
}

// Committed reports whether the session has been written to the record.
func (s *Session) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

func (s *Session) SetMedicationField(i int, field MedicationField, value string) error {
	return s.edit(func(sg *prescription.Suggestion) error {
		if i < 0 || i >= len(sg.Medications) {
			return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
		}
		m := &sg.Medications[i]
		switch field {
		case FieldName:
			m.Name = value
		case FieldDosage:
			m.Dosage = value
		case FieldFrequency:
			m.Frequency = value
		case FieldDuration:
			m.Duration = value
		case FieldRoute:
			m.Route = value
		case FieldAdditionalInstructions:
			m.AdditionalInstructions = value
		default:
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		return nil
	})
}

// AddMedication inserts a blank entry at the top of the list.
func (s *Session) AddMedication() error {
	return s.edit(func(sg *prescription.Suggestion) error {
		sg.Medications = append([]prescription.Medication{{}}, sg.Medications...)
		return nil
	})
}

func (s *Session) RemoveMedication(i int) error {
	return s.edit(func(sg *prescription.Suggestion) error {
		if i < 0 || i >= len(sg.Medications) {
			return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
		}
		sg.Medications = append(sg.Medications[:i:i], sg.Medications[i+1:]...)
		return nil
	})
}

func (s *Session) SetGeneralInstructions(v string) error {
	return s.edit(func(sg *prescription.Suggestion) error {
		sg.GeneralInstructions = v
		return nil
	})
}

func (s *Session) SetFollowUp(v string) error {
	return s.edit(func(sg *prescription.Suggestion) error {
		sg.FollowUp = v
		return nil
	})
}

func (s *Session) SetAdditionalNotes(v string) error {
	return s.edit(func(sg *prescription.Suggestion) error {
		sg.AdditionalNotes = v
		return nil
	})
}

func (s *Session) edit(fn func(*prescription.Suggestion) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed {
		return ErrAlreadyCommitted
	}
	return fn(&s.suggestion)
}

// claim marks the session committed and returns the suggestion to write.
func (s *Session) claim() (prescription.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed {
		return prescription.Suggestion{}, ErrAlreadyCommitted
	}
	s.committed = true
	return s.suggestion.Clone(), nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.committed = false
	s.mu.Unlock()
}
