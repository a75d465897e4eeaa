package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/internal/suggest"
	"github.com/wolfman30/medisync/pkg/logging"
)

func fluSuggestion() prescription.Suggestion {
	return prescription.Suggestion{
		Medications: []prescription.Medication{
			{Name: "Oseltamivir", Dosage: "75mg capsule", Frequency: "twice daily", Duration: "5 days", Route: "oral"},
		},
		GeneralInstructions: "Rest and fluids.",
		FollowUp:            "Return if fever persists beyond 3 days.",
	}
}

func newSuggestionsHandler(t *testing.T, store *records.Store, gen suggest.Generator) (*SuggestionsHandler, *events.MemoryPublisher) {
	t.Helper()
	pub := events.NewMemoryPublisher()
	committer := suggest.NewCommitter(store, logging.Discard(),
		suggest.WithPublisher(pub),
		suggest.WithClock(func() time.Time { return testNow }),
	)
	h := NewSuggestionsHandler(SuggestionsConfig{
		Store:     store,
		Registry:  suggest.NewRegistry(gen, logging.Discard()),
		Committer: committer,
		Logger:    logging.Discard(),
	})
	return h, pub
}

func TestSuggestionsHandler_TemporaryPatientFlow(t *testing.T) {
	store := seededStore(t)
	appt := bookAppointment(t, store, "Sarah Connor", "doc1", testNow.Add(time.Hour))
	h, pub := newSuggestionsHandler(t, store, stubGenerator{})

	rec := serve(t, h.Select, request{method: http.MethodPost, path: "/api/suggestions/selection", doctor: &alisha, body: map[string]string{"appointmentId": appt.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sel := decode[selectionResponse](t, rec)
	assert.True(t, sel.Temporary)
	assert.Equal(t, "temp-appointment-"+appt.ID, sel.Patient.ID)
	assert.Equal(t, "Presented with: sore throat", sel.Patient.History)

	rec = serve(t, h.Generate, request{method: http.MethodPost, path: "/api/suggestions/generate", doctor: &alisha, body: map[string]string{"symptoms": "fever, body ache", "diagnosis": "Influenza"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := decode[sessionResponse](t, rec)
	assert.Equal(t, "Influenza", sess.Context.Diagnosis)
	require.Len(t, sess.Suggestion.Medications, 1)

	rec = serve(t, h.Edit, request{method: http.MethodPatch, path: "/", doctor: &alisha, body: map[string]any{"op": "set_field", "index": 0, "field": "dosage", "value": "30mg capsule"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(t, h.Edit, request{method: http.MethodPatch, path: "/", doctor: &alisha, body: map[string]any{"op": "add_medication"}})
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decode[sessionResponse](t, rec)
	require.Len(t, sess.Suggestion.Medications, 2)
	assert.Empty(t, sess.Suggestion.Medications[0].Name)

	// A blank medication blocks the commit but keeps the session editable.
	rec = serve(t, h.Commit, request{method: http.MethodPost, path: "/", doctor: &alisha})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.Edit, request{method: http.MethodPatch, path: "/", doctor: &alisha, body: map[string]any{"op": "remove_medication", "index": 0}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h.Commit, request{method: http.MethodPost, path: "/", doctor: &alisha})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patient := decode[records.Patient](t, rec)
	assert.False(t, patient.IsTemporary())
	assert.Equal(t, "Sarah Connor", patient.Name)
	require.Len(t, patient.Prescriptions, 1)
	assert.True(t, strings.HasPrefix(patient.Prescriptions[0], "Prescribed on: 2023-10-26 at 11:00\n"))
	assert.Contains(t, patient.Prescriptions[0], "1. Oseltamivir 30mg capsule (oral), twice daily for 5 days")

	committed := pub.OfType(events.TypePrescriptionCommitted)
	require.Len(t, committed, 1)
	assert.Equal(t, "patient:"+patient.ID, committed[0].Aggregate)

	rec = serve(t, h.Selection, request{method: http.MethodGet, path: "/", doctor: &alisha})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, patient.ID, decode[selectionResponse](t, rec).Patient.ID)

	rec = serve(t, h.Session, request{method: http.MethodGet, path: "/", doctor: &alisha})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestionsHandler_RequiresDoctor(t *testing.T) {
	h, _ := newSuggestionsHandler(t, seededStore(t), stubGenerator{})
	rec := serve(t, h.Select, request{method: http.MethodPost, path: "/", body: map[string]string{"patientId": "1"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSuggestionsHandler_GenerationUnavailable(t *testing.T) {
	h, _ := newSuggestionsHandler(t, seededStore(t), stubGenerator{err: errors.New("model overloaded")})

	rec := serve(t, h.Generate, request{method: http.MethodPost, path: "/", doctor: &alisha, body: map[string]string{"symptoms": "cough"}})
	assert.Equal(t, http.StatusNotFound, rec.Code, "no patient selected yet")

	rec = serve(t, h.Select, request{method: http.MethodPost, path: "/", doctor: &alisha, body: map[string]string{"patientId": "1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[selectionResponse](t, rec).Temporary)

	rec = serve(t, h.Generate, request{method: http.MethodPost, path: "/", doctor: &alisha, body: map[string]string{"symptoms": "cough"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "overloaded")
}

func TestSuggestionsHandler_EditErrors(t *testing.T) {
	h, _ := newSuggestionsHandler(t, seededStore(t), stubGenerator{})

	rec := serve(t, h.Edit, request{method: http.MethodPatch, path: "/", doctor: &alisha, body: map[string]any{"op": "add_medication"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	serve(t, h.Select, request{method: http.MethodPost, path: "/", doctor: &alisha, body: map[string]string{"patientId": "2"}})
	serve(t, h.Generate, request{method: http.MethodPost, path: "/", doctor: &alisha, body: map[string]string{"symptoms": "headache"}})

	cases := []map[string]any{
		{"op": "set_field", "index": 4, "field": "name", "value": "x"},
		{"op": "set_field", "index": 0, "field": "colour", "value": "x"},
		{"op": "shuffle"},
	}
	for _, body := range cases {
		rec = serve(t, h.Edit, request{method: http.MethodPatch, path: "/", doctor: &alisha, body: body})
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = serve(t, h.ClearSelection, request{method: http.MethodDelete, path: "/", doctor: &alisha})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(t, h.Selection, request{method: http.MethodGet, path: "/", doctor: &alisha})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestionsHandler_SelectUnknown(t *testing.T) {
	h, _ := newSuggestionsHandler(t, seededStore(t), stubGenerator{})

	rec := serve(t, h.Select, request{method: http.MethodPost, path: "/", doctor: &alisha, body: map[string]string{"appointmentId": "missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(t, h.Select, request{method: http.MethodPost, path: "/", doctor: &alisha, body: map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
