package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medisync/internal/compliance"
	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/internal/http/middleware"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

// AppointmentsConfig wires the appointments handler.
type AppointmentsConfig struct {
	Store     *records.Store
	Roster    *doctors.Roster
	Audit     *compliance.AuditService
	Publisher events.Publisher
	Logger    *logging.Logger
}

// AppointmentsHandler serves appointment listings and status changes.
type AppointmentsHandler struct {
	store     *records.Store
	roster    *doctors.Roster
	audit     *compliance.AuditService
	publisher events.Publisher
	logger    *logging.Logger
	now       func() time.Time
}

func NewAppointmentsHandler(cfg AppointmentsConfig) *AppointmentsHandler {
	if cfg.Store == nil {
		panic("handlers: records store required")
	}
	if cfg.Roster == nil {
		cfg.Roster = doctors.DefaultRoster()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AppointmentsHandler{
		store:     cfg.Store,
		roster:    cfg.Roster,
		audit:     cfg.Audit,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Doctors handles GET /api/doctors.
func (h *AppointmentsHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"doctors": h.roster.All()})
}

// List handles GET /api/appointments, newest first.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	appts, err := h.store.ListAppointments(r.Context())
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, err)
		return
	}
	writeAppointments(w, appts)
}

// Mine handles GET /api/doctor/appointments for the signed-in doctor.
func (h *AppointmentsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	doc, ok := doctorOrForbidden(w, r)
	if !ok {
		return
	}
	appts, err := h.store.AppointmentsForDoctor(r.Context(), doc.ID)
	if err != nil {
		h.logger.Error("failed to list doctor appointments", "error", err, "doctor_id", doc.ID)
		writeError(w, err)
		return
	}
	writeAppointments(w, appts)
}

type statusRequest struct {
	Status records.AppointmentStatus `json:"status"`
}

// SetStatus handles PATCH /api/doctor/appointments/{appointmentID}/status.
func (h *AppointmentsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SetAppointmentStatus(r.Context(), id, req.Status); err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("failed to set appointment status", "error", err, "appointment_id", id)
		}
		writeError(w, err)
		return
	}

	if req.Status == records.StatusCompleted {
		doctorID := ""
		if doc, ok := middleware.DoctorFromContext(r.Context()); ok {
			doctorID = doc.ID
		}
		evt := events.AppointmentCompletedV1{AppointmentID: id, DoctorID: doctorID, CompletedAt: h.now().UTC()}
		if _, err := h.publisher.Publish(r.Context(), "appointment:"+id, evt); err != nil {
			h.logger.Warn("failed to publish appointment completion", "error", err, "appointment_id", id)
		}
		if err := h.audit.LogAppointmentCompleted(r.Context(), id, doctorID); err != nil {
			h.logger.Warn("failed to audit appointment completion", "error", err, "appointment_id", id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

func writeAppointments(w http.ResponseWriter, appts []records.Appointment) {
	if appts == nil {
		appts = []records.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"total":        len(appts),
	})
}
