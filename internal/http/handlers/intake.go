package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/medisync/internal/http/middleware"
	"github.com/wolfman30/medisync/internal/intake"
	"github.com/wolfman30/medisync/internal/voice"
	"github.com/wolfman30/medisync/pkg/logging"
)

// Client frames on the voice socket besides the recognizer results.
const (
	frameListen = "listen"
	frameCancel = "cancel"
	frameResult = "result"

	voiceReadLimit = 64 << 10
)

// IntakeConfig wires the front-desk intake handler.
type IntakeConfig struct {
	Desks  *intake.Desks
	Booker *intake.Booker
	// Drafts may be nil when Redis is not configured.
	Drafts *intake.DraftStore
	// AllowedOrigins for the voice socket. Empty means same origin only.
	AllowedOrigins []string
	Logger         *logging.Logger
}

// IntakeHandler serves the booking form, transcript reconciliation and the
// browser speech recognizer socket. Each operator works on the desk named by
// middleware.DeskID.
type IntakeHandler struct {
	desks    *intake.Desks
	booker   *intake.Booker
	drafts   *intake.DraftStore
	upgrader websocket.Upgrader
	logger   *logging.Logger
	now      func() time.Time
}

func NewIntakeHandler(cfg IntakeConfig) *IntakeHandler {
	if cfg.Desks == nil {
		panic("handlers: intake desks required")
	}
	if cfg.Booker == nil {
		panic("handlers: intake booker required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	h := &IntakeHandler{
		desks:  cfg.Desks,
		booker: cfg.Booker,
		drafts: cfg.Drafts,
		logger: cfg.Logger,
		now:    time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// originChecker returns nil, the upgrader's same-origin default, when no
// origins are configured.
func originChecker(origins []string) func(*http.Request) bool {
	allow := map[string]struct{}{}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allow[o] = struct{}{}
		}
	}
	if len(allow) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		_, ok := allow[r.Header.Get("Origin")]
		return ok
	}
}

// GetForm handles GET /api/intake/form.
func (h *IntakeHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	desk := h.desks.Get(middleware.DeskID(r))
	writeJSON(w, http.StatusOK, desk.Form())
}

type formPatch struct {
	PatientName     *string    `json:"patientName,omitempty"`
	PatientAge      *int       `json:"patientAge,omitempty"`
	ClearAge        bool       `json:"clearAge,omitempty"`
	Symptoms        *string    `json:"symptoms,omitempty"`
	DoctorID        *string    `json:"doctorId,omitempty"`
	AppointmentDate *time.Time `json:"appointmentDate,omitempty"`
	ClearDate       bool       `json:"clearDate,omitempty"`
}

func (p formPatch) apply(f *intake.AppointmentForm) {
	if p.PatientName != nil {
		f.PatientName = *p.PatientName
	}
	if p.ClearAge {
		f.PatientAge = nil
	} else if p.PatientAge != nil {
		age := *p.PatientAge
		f.PatientAge = &age
	}
	if p.Symptoms != nil {
		f.Symptoms = *p.Symptoms
	}
	if p.DoctorID != nil {
		f.DoctorID = *p.DoctorID
	}
	if p.ClearDate {
		f.AppointmentDate = nil
	} else if p.AppointmentDate != nil {
		at := *p.AppointmentDate
		f.AppointmentDate = &at
	}
}

// EditForm handles PATCH /api/intake/form with manual operator edits.
func (h *IntakeHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	var patch formPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	deskID := middleware.DeskID(r)
	form := h.desks.Get(deskID).Edit(patch.apply)
	h.saveDraft(r.Context(), deskID, form)
	writeJSON(w, http.StatusOK, form)
}

// ResetForm handles DELETE /api/intake/form. Outstanding captures for the
// desk are invalidated.
func (h *IntakeHandler) ResetForm(w http.ResponseWriter, r *http.Request) {
	deskID := middleware.DeskID(r)
	h.desks.Get(deskID).Reset()
	if err := h.drafts.Delete(r.Context(), deskID); err != nil {
		h.logger.Warn("failed to delete intake draft", "error", err, "desk_id", deskID)
	}
	w.WriteHeader(http.StatusNoContent)
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

// Reconcile handles POST /api/intake/transcript. A typed transcript is
// treated like a finished capture.
func (h *IntakeHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	deskID := middleware.DeskID(r)
	desk := h.desks.Get(deskID)
	ticket := desk.BeginCapture()
	report, err := desk.Reconcile(r.Context(), ticket, req.Transcript, h.now())
	if err != nil {
		writeError(w, err)
		return
	}
	h.recordReport(r.Context(), deskID, req.Transcript, report)
	writeJSON(w, http.StatusOK, report)
}

// Book handles POST /api/intake/book. The desk is cleared after a successful
// booking.
func (h *IntakeHandler) Book(w http.ResponseWriter, r *http.Request) {
	deskID := middleware.DeskID(r)
	desk := h.desks.Get(deskID)
	appt, err := h.booker.Book(r.Context(), desk.Form())
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("booking failed", "error", err, "desk_id", deskID)
		}
		writeError(w, err)
		return
	}
	desk.Reset()
	if err := h.drafts.Delete(r.Context(), deskID); err != nil {
		h.logger.Warn("failed to delete intake draft", "error", err, "desk_id", deskID)
	}
	writeJSON(w, http.StatusCreated, appt)
}

// RestoreDraft handles POST /api/intake/draft/restore, replacing the live
// form with the saved draft.
func (h *IntakeHandler) RestoreDraft(w http.ResponseWriter, r *http.Request) {
	deskID := middleware.DeskID(r)
	draft, ok, err := h.drafts.Load(r.Context(), deskID)
	if err != nil {
		h.logger.Error("failed to load intake draft", "error", err, "desk_id", deskID)
		jsonError(w, "draft store unavailable", http.StatusBadGateway)
		return
	}
	if !ok {
		jsonError(w, "no saved draft", http.StatusNotFound)
		return
	}
	form := h.desks.Get(deskID).Edit(func(f *intake.AppointmentForm) { *f = draft })
	writeJSON(w, http.StatusOK, form)
}

// Transcripts handles GET /api/intake/transcripts?limit=n.
func (h *IntakeHandler) Transcripts(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	deskID := middleware.DeskID(r)
	entries, err := h.drafts.Transcripts(r.Context(), deskID, limit)
	if err != nil {
		h.logger.Error("failed to list transcripts", "error", err, "desk_id", deskID)
		jsonError(w, "draft store unavailable", http.StatusBadGateway)
		return
	}
	if entries == nil {
		entries = []intake.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": entries})
}

type voiceResult struct {
	Type       string         `json:"type"`
	Outcome    voice.Outcome  `json:"outcome,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	Report     *intake.Report `json:"report,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Voice handles GET /api/intake/voice. The browser runs the recognizer; this
// end drives it with start/stop frames and reconciles whatever it hears.
// Clients send "listen" to begin a capture and "cancel" to abort it.
func (h *IntakeHandler) Voice(w http.ResponseWriter, r *http.Request) {
	deskID := middleware.DeskID(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("voice upgrade failed", "error", err, "desk_id", deskID)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(voiceReadLimit)

	desk := h.desks.Get(deskID)
	device := voice.NewWebSocketDevice(conn)
	session := voice.NewSession(device, h.logger.With("desk_id", deskID))

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.logger.Info("voice socket opened", "desk_id", deskID)
	for {
		var msg voice.Message
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("voice socket closed", "desk_id", deskID, "error", err)
			session.Stop()
			return
		}
		switch msg.Type {
		case frameListen:
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.listen(ctx, deskID, desk, session, device)
			}()
		case frameCancel:
			session.Stop()
		default:
			if !device.Deliver(msg) {
				h.logger.Debug("dropping recognizer frame", "desk_id", deskID, "type", msg.Type)
			}
		}
	}
}

func (h *IntakeHandler) listen(ctx context.Context, deskID string, desk *intake.Desk, session *voice.Session, device *voice.WebSocketDevice) {
	res, report, err := desk.Listen(ctx, session, h.now())
	if errors.Is(err, voice.ErrCaptureInProgress) {
		h.logger.Debug("ignoring listen while already listening", "desk_id", deskID)
		return
	}
	reply := voiceResult{Type: frameResult, Outcome: res.Outcome, Transcript: res.Transcript}
	switch {
	case errors.Is(err, intake.ErrStaleResult):
		reply.Outcome = voice.OutcomeCancelled
		reply.Error = err.Error()
	case err != nil:
		reply.Outcome = voice.OutcomeError
		reply.Error = err.Error()
	case res.Outcome == voice.OutcomeError && res.Err != nil:
		reply.Error = res.Err.Error()
	case res.Outcome == voice.OutcomeTranscribed:
		reply.Report = &report
		h.recordReport(ctx, deskID, res.Transcript, report)
	}
	if ctx.Err() != nil {
		return
	}
	if err := device.Send(reply); err != nil {
		h.logger.Debug("failed to send voice result", "error", err, "desk_id", deskID)
	}
}

func (h *IntakeHandler) recordReport(ctx context.Context, deskID, transcript string, report intake.Report) {
	h.saveDraft(ctx, deskID, report.Form)
	entry := intake.TranscriptEntry{Transcript: transcript, Outcomes: report.Outcomes, At: h.now().UTC()}
	if err := h.drafts.AppendTranscript(ctx, deskID, entry); err != nil {
		h.logger.Warn("failed to keep transcript", "error", err, "desk_id", deskID)
	}
}

func (h *IntakeHandler) saveDraft(ctx context.Context, deskID string, form intake.AppointmentForm) {
	if err := h.drafts.Save(ctx, deskID, form); err != nil {
		h.logger.Warn("failed to save intake draft", "error", err, "desk_id", deskID)
	}
}
