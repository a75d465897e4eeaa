package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/http/middleware"
	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/internal/suggest"
	"github.com/wolfman30/medisync/pkg/logging"
)

// SuggestionsConfig wires the doctor's prescription workbench handler.
type SuggestionsConfig struct {
	Store     *records.Store
	Registry  *suggest.Registry
	Committer *suggest.Committer
	Logger    *logging.Logger
}

// SuggestionsHandler lets a signed-in doctor pick a patient, generate a
// prescription suggestion, edit it and commit it to the record.
type SuggestionsHandler struct {
	store     *records.Store
	registry  *suggest.Registry
	committer *suggest.Committer
	logger    *logging.Logger
}

func NewSuggestionsHandler(cfg SuggestionsConfig) *SuggestionsHandler {
	if cfg.Store == nil || cfg.Registry == nil || cfg.Committer == nil {
		panic("handlers: store, registry and committer required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SuggestionsHandler{
		store:     cfg.Store,
		registry:  cfg.Registry,
		committer: cfg.Committer,
		logger:    cfg.Logger,
	}
}

type selectRequest struct {
	PatientID     string `json:"patientId,omitempty"`
	AppointmentID string `json:"appointmentId,omitempty"`
}

type selectionResponse struct {
	Patient   records.Patient `json:"patient"`
	Temporary bool            `json:"temporary"`
}

type sessionResponse struct {
	ID         string                         `json:"id"`
	PatientID  string                         `json:"patientId"`
	DoctorID   string                         `json:"doctorId"`
	Context    prescription.GenerationContext `json:"context"`
	Suggestion prescription.Suggestion        `json:"suggestion"`
	Committed  bool                           `json:"committed"`
}

func sessionView(s *suggest.Session) sessionResponse {
	return sessionResponse{
		ID:         s.ID(),
		PatientID:  s.Patient().ID,
		DoctorID:   s.Doctor().ID,
		Context:    s.Context(),
		Suggestion: s.Suggestion(),
		Committed:  s.Committed(),
	}
}

func (h *SuggestionsHandler) workbench(w http.ResponseWriter, r *http.Request) (*suggest.Workbench, bool) {
	doc, ok := doctorOrForbidden(w, r)
	if !ok {
		return nil, false
	}
	return h.registry.For(doc), true
}

// Select handles POST /api/doctor/suggestions/selection. Selecting by appointment
// resolves the appointment's patient by name and falls back to a temporary
// patient when nobody matches.
func (h *SuggestionsHandler) Select(w http.ResponseWriter, r *http.Request) {
	wb, ok := h.workbench(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)

	var patient records.Patient
	switch {
	case req.PatientID != "":
		p, err := h.store.GetPatient(r.Context(), req.PatientID)
		if err != nil {
			writeError(w, err)
			return
		}
		patient = p
	case req.AppointmentID != "":
		appt, err := h.findAppointment(r, req.AppointmentID)
		if err != nil {
			writeError(w, err)
			return
		}
		p, _, err := h.store.ResolveAppointmentPatient(r.Context(), appt)
		if err != nil {
			writeError(w, err)
			return
		}
		patient = p
	default:
		jsonError(w, "patientId or appointmentId is required", http.StatusBadRequest)
		return
	}

	wb.Select(patient)
	writeJSON(w, http.StatusOK, selectionResponse{Patient: patient, Temporary: patient.IsTemporary()})
}

func (h *SuggestionsHandler) findAppointment(r *http.Request, id string) (records.Appointment, error) {
	appts, err := h.store.ListAppointments(r.Context())
	if err != nil {
		return records.Appointment{}, err
	}
	for _, a := range appts {
		if a.ID == id {
			return a, nil
		}
	}
	return records.Appointment{}, records.ErrAppointmentNotFound
}

// Selection handles GET /api/doctor/suggestions/selection.
func (h *SuggestionsHandler) Selection(w http.ResponseWriter, r *http.Request) {
	wb, ok := h.workbench(w, r)
	if !ok {
		return
	}
	p, ok := wb.Selection()
	if !ok {
		writeError(w, suggest.ErrNoPatient)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Patient: p, Temporary: p.IsTemporary()})
}

// ClearSelection handles DELETE /api/doctor/suggestions/selection.
func (h *SuggestionsHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	wb, ok := h.workbench(w, r)
	if !ok {
		return
	}
	wb.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// Generate handles POST /api/doctor/suggestions/generate.
func (h *SuggestionsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	wb, ok := h.workbench(w, r)
	if !ok {
		return
	}
	var in suggest.GenerationInput
	if err := decodeJSON(w, r, &in); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s, err := wb.Generate(r.Context(), in)
	if err != nil {
		if errors.Is(err, suggest.ErrGenerationUnavailable) {
			jsonError(w, "could not generate a suggestion, try again", http.StatusServiceUnavailable)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(s))
}

// Session handles GET /api/doctor/suggestions/session.
func (h *SuggestionsHandler) Session(w http.ResponseWriter, r *http.Request) {
	wb, ok := h.workbench(w, r)
	if !ok {
		return
	}
	s := wb.Session()
	if s == nil {
		writeError(w, suggest.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(s))
}

// Edit operations accepted by PATCH /api/doctor/suggestions/session.
const (
	editSetField               = "set_field"
	editAddMedication          = "add_medication"
	editRemoveMedication       = "remove_medication"
	editSetGeneralInstructions = "set_general_instructions"
	editSetFollowUp            = "set_follow_up"
	editSetAdditionalNotes     = "set_additional_notes"
)

type editRequest struct {
	Op    string                  `json:"op"`
	Index int                     `json:"index,omitempty"`
	Field suggest.MedicationField `json:"field,omitempty"`
	Value string                  `json:"value,omitempty"`
}

// Edit handles PATCH /api/doctor/suggestions/session.
func (h *SuggestionsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	wb, ok := h.workbench(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s := wb.Session()
	if s == nil {
		writeError(w, suggest.ErrNoSession)
		return
	}

	var err error
	switch req.Op {
	case editSetField:
		err = s.SetMedicationField(req.Index, req.Field, req.Value)
	case editAddMedication:
		err = s.AddMedication()
	case editRemoveMedication:
		err = s.RemoveMedication(req.Index)
	case editSetGeneralInstructions:
		err = s.SetGeneralInstructions(req.Value)
	case editSetFollowUp:
		err = s.SetFollowUp(req.Value)
	case editSetAdditionalNotes:
		err = s.SetAdditionalNotes(req.Value)
	default:
		jsonError(w, "unknown edit op "+req.Op, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(s))
}

// Commit handles POST /api/doctor/suggestions/commit. It returns the patient as
// stored after the commit; for a temporary patient that is the newly created
// record.
func (h *SuggestionsHandler) Commit(w http.ResponseWriter, r *http.Request) {
	wb, ok := h.workbench(w, r)
	if !ok {
		return
	}
	updated, err := wb.Commit(r.Context(), h.committer)
	if err != nil {
		var perr *records.PromotionError
		if errors.As(err, &perr) {
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error":           "patient was created but the prescription was not saved",
				"orphanPatientId": perr.Patient.ID,
			})
			return
		}
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("prescription commit failed", "error", err, "doctor_id", wb.Doctor().ID)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func doctorOrForbidden(w http.ResponseWriter, r *http.Request) (doctors.Doctor, bool) {
	doc, ok := middleware.DoctorFromContext(r.Context())
	if !ok {
		jsonError(w, "doctor profile not found", http.StatusForbidden)
	}
	return doc, ok
}
