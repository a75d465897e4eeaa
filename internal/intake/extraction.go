package intake

import (
	"context"
	"errors"
	"strings"
)

// ErrCollaboratorUnavailable wraps extraction failures.
var ErrCollaboratorUnavailable = errors.New("intake: extraction unavailable")

// ExtractionRequest is sent to the extraction collaborator. CurrentDate is
// YYYY-MM-DD and anchors relative expressions like "tomorrow".
type ExtractionRequest struct {
	Transcript  string `json:"transcript"`
	CurrentDate string `json:"currentDate"`
}

// Extraction is the partial record returned by the collaborator. Nil means
// the field was not mentioned.
type Extraction struct {
	PatientName     *string `json:"patientName,omitempty"`
	PatientAge      *int    `json:"patientAge,omitempty"`
	Symptoms        *string `json:"symptoms,omitempty"`
	DoctorQuery     *string `json:"doctorQuery,omitempty"`
	AppointmentDate *string `json:"appointmentDateYYYYMMDD,omitempty"`
	AppointmentTime *string `json:"appointmentTimeHHMM,omitempty"`
}

// Extractor pulls appointment details out of a transcript.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (Extraction, error)
}

// present reports whether a string field carries a non-blank value.
func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
