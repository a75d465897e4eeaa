package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medisync/internal/compliance"
	"github.com/wolfman30/medisync/internal/http/middleware"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

// PatientsHandler serves the patient list and record edits.
type PatientsHandler struct {
	store  *records.Store
	audit  *compliance.AuditService
	logger *logging.Logger
	now    func() time.Time
}

// NewPatientsHandler creates a patients handler. audit may be nil.
func NewPatientsHandler(store *records.Store, audit *compliance.AuditService, logger *logging.Logger) *PatientsHandler {
	if store == nil {
		panic("handlers: records store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientsHandler{store: store, audit: audit, logger: logger, now: time.Now}
}

// List handles GET /api/patients?sort=activity|name|age&dir=asc|desc&q=term.
func (h *PatientsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := records.ListOptions{
		Sort:      records.SortField(q.Get("sort")),
		Direction: records.SortDirection(q.Get("dir")),
		Search:    q.Get("q"),
	}
	patients, err := h.store.ListPatients(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list patients", "error", err)
		writeError(w, err)
		return
	}
	if patients == nil {
		patients = []records.Patient{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patients": patients,
		"total":    len(patients),
	})
}

// Get handles GET /api/patients/{patientID}.
func (h *PatientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetPatient(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Create handles POST /api/patients.
func (h *PatientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in records.PatientInput
	if err := decodeJSON(w, r, &in); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := h.store.AddPatient(r.Context(), in)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("failed to add patient", "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Update handles PATCH /api/patients/{patientID}.
func (h *PatientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	var u records.PatientUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if u.Empty() {
		jsonError(w, "nothing to update", http.StatusBadRequest)
		return
	}
	if err := h.store.UpdatePatient(r.Context(), id, u); err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("failed to update patient", "error", err, "patient_id", id)
		}
		writeError(w, err)
		return
	}

	doctorID := ""
	if doc, ok := middleware.DoctorFromContext(r.Context()); ok {
		doctorID = doc.ID
	}
	if err := h.audit.LogPatientUpdated(r.Context(), id, doctorID, updatedFields(u)); err != nil {
		h.logger.Warn("failed to audit patient update", "error", err, "patient_id", id)
	}

	p, err := h.store.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Seed handles POST /ops/patients/seed. It only writes into an empty store.
func (h *PatientsHandler) Seed(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.store.SeedIfEmpty(r.Context(), records.DefaultSeedPatients(h.now()))
	if err != nil {
		h.logger.Error("failed to seed patients", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"seeded": seeded})
}

// Refresh handles POST /ops/records/refresh.
func (h *PatientsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Refresh(r.Context()); err != nil {
		h.logger.Error("records refresh failed", "error", err)
		jsonError(w, "records store unavailable", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func updatedFields(u records.PatientUpdate) []string {
	var fields []string
	if u.Name != nil {
		fields = append(fields, "name")
	}
	if u.Age != nil {
		fields = append(fields, "age")
	}
	if u.Diagnosis != nil {
		fields = append(fields, "diagnosis")
	}
	if u.History != nil {
		fields = append(fields, "history")
	}
	if u.AvatarURL != nil {
		fields = append(fields, "avatarUrl")
	}
	return fields
}
