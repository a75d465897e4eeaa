// Package prescription owns the canonical prescription text fragment: the
// structured suggestion it is rendered from, the formatter that writes it and
// the parser that reads its timestamp header back.
package prescription

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySuggestion is returned when a suggestion has no medications and no
	// additional notes explaining why.
	ErrEmptySuggestion = errors.New("prescription: suggestion needs a medication or additional notes")
	// ErrMedicationIncomplete is returned when a medication entry has no name.
	ErrMedicationIncomplete = errors.New("prescription: medication name is required")
)

// Medication is a single prescribed drug entry.
type Medication struct {
	Name                   string `json:"name"`
	Dosage                 string `json:"dosage"`
	Frequency              string `json:"frequency"`
	Duration               string `json:"duration,omitempty"`
	Route                  string `json:"route,omitempty"`
	AdditionalInstructions string `json:"additionalInstructions,omitempty"`
}

// Suggestion is the structured output of the generation collaborator, and the
// editable object a doctor commits.
type Suggestion struct {
	Medications         []Medication `json:"medications"`
	GeneralInstructions string       `json:"generalInstructions,omitempty"`
	FollowUp            string       `json:"followUp,omitempty"`
	AdditionalNotes     string       `json:"additionalNotes,omitempty"`
}

// GenerationContext is the symptoms/diagnosis pair a suggestion was generated
// for. It is recorded verbatim in the committed fragment.
type GenerationContext struct {
	Symptoms  string `json:"symptoms"`
	Diagnosis string `json:"diagnosis"`
}

// Clone returns a deep copy.
func (s Suggestion) Clone() Suggestion {
	out := s
	if s.Medications != nil {
		out.Medications = make([]Medication, len(s.Medications))
		copy(out.Medications, s.Medications)
	}
	return out
}

// Normalize trims every field and guarantees a non-nil medication slice.
func (s Suggestion) Normalize() Suggestion {
	out := s.Clone()
	if out.Medications == nil {
		out.Medications = []Medication{}
	}
	for i := range out.Medications {
		m := &out.Medications[i]
		m.Name = strings.TrimSpace(m.Name)
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		m.Duration = strings.TrimSpace(m.Duration)
		m.Route = strings.TrimSpace(m.Route)
		m.AdditionalInstructions = strings.TrimSpace(m.AdditionalInstructions)
	}
	out.GeneralInstructions = strings.TrimSpace(out.GeneralInstructions)
	out.FollowUp = strings.TrimSpace(out.FollowUp)
	out.AdditionalNotes = strings.TrimSpace(out.AdditionalNotes)
	return out
}

// Validate checks the suggestion can be committed. An empty medication list is
// valid when additional notes explain it.
func (s Suggestion) Validate() error {
	if len(s.Medications) == 0 && strings.TrimSpace(s.AdditionalNotes) == "" {
		return ErrEmptySuggestion
	}
	for i, m := range s.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%w (entry %d)", ErrMedicationIncomplete, i+1)
		}
	}
	return nil
}
