package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medisync/internal/records"
)

func newTestSession() *Session {
	req := GenerationRequest{Symptoms: "fever", Diagnosis: "Viral fever"}
	return NewSession(records.Patient{ID: "p-1", Name: "Ravi Kumar"}, testDoctor, req, feverSuggestion())
}

func TestSession_IsIndependentCopy(t *testing.T) {
	src := feverSuggestion()
	s := NewSession(records.Patient{ID: "p-1"}, testDoctor, GenerationRequest{}, src)

	require.NoError(t, s.SetMedicationField(0, FieldDosage, "650mg tablet"))
	assert.Equal(t, "500mg tablet", src.Medications[0].Dosage)

	got := s.Suggestion()
	got.Medications[0].Name = "changed"
	assert.Equal(t, "Paracetamol", s.Suggestion().Medications[0].Name)
}

func TestSession_SetMedicationField(t *testing.T) {
	s := newTestSession()
	tests := []struct {
		field MedicationField
		value string
	}{
		{FieldName, "Ibuprofen"},
		{FieldDosage, "400mg"},
		{FieldFrequency, "twice daily"},
		{FieldDuration, "5 days"},
		{FieldRoute, "oral"},
		{FieldAdditionalInstructions, "take with food"},
	}
	for _, tt := range tests {
		require.NoError(t, s.SetMedicationField(1, tt.field, tt.value), tt.field)
	}
	m := s.Suggestion().Medications[1]
	assert.Equal(t, "Ibuprofen", m.Name)
	assert.Equal(t, "400mg", m.Dosage)
	assert.Equal(t, "twice daily", m.Frequency)
	assert.Equal(t, "5 days", m.Duration)
	assert.Equal(t, "oral", m.Route)
	assert.Equal(t, "take with food", m.AdditionalInstructions)

	assert.ErrorIs(t, s.SetMedicationField(2, FieldName, "x"), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.SetMedicationField(-1, FieldName, "x"), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.SetMedicationField(0, "strength", "x"), ErrUnknownField)
}

func TestSession_AddAndRemoveMedication(t *testing.T) {
	s := newTestSession()

	require.NoError(t, s.AddMedication())
	meds := s.Suggestion().Medications
	require.Len(t, meds, 3)
	assert.Empty(t, meds[0].Name)
	assert.Equal(t, "Paracetamol", meds[1].Name)

	require.NoError(t, s.RemoveMedication(1))
	meds = s.Suggestion().Medications
	require.Len(t, meds, 2)
	assert.Empty(t, meds[0].Name)
	assert.Equal(t, "ORS", meds[1].Name)

	assert.ErrorIs(t, s.RemoveMedication(2), ErrIndexOutOfRange)
}

func TestSession_SectionsAreClearable(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.SetGeneralInstructions(""))
	require.NoError(t, s.SetFollowUp(""))
	require.NoError(t, s.SetAdditionalNotes("Check for allergies."))

	got := s.Suggestion()
	assert.Empty(t, got.GeneralInstructions)
	assert.Empty(t, got.FollowUp)
	assert.Equal(t, "Check for allergies.", got.AdditionalNotes)
}

func TestSession_ContextIsFrozen(t *testing.T) {
	req := GenerationRequest{Symptoms: " fever ", Diagnosis: "Viral fever", PriorPrescriptions: []string{"old"}}
	s := NewSession(records.Patient{ID: "p-1"}, testDoctor, req, feverSuggestion())
	req.Symptoms = "changed"
	req.PriorPrescriptions[0] = "changed"

	assert.Equal(t, "fever", s.Context().Symptoms)
	assert.Equal(t, "old", s.Request().PriorPrescriptions[0])
}
