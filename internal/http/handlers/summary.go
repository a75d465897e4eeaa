package handlers

import (
	"net/http"
	"time"

	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/internal/summary"
	"github.com/wolfman30/medisync/pkg/logging"
)

// SummaryHandler serves the end-of-shift digest for the signed-in doctor.
type SummaryHandler struct {
	summarizer *summary.Summarizer
	loc        *time.Location
	logger     *logging.Logger
	now        func() time.Time
}

func NewSummaryHandler(summarizer *summary.Summarizer, store *records.Store, logger *logging.Logger) *SummaryHandler {
	if summarizer == nil || store == nil {
		panic("handlers: summarizer and store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SummaryHandler{summarizer: summarizer, loc: store.Location(), logger: logger, now: time.Now}
}

// Shift handles GET /api/doctor/summary?date=YYYY-MM-DD. The date is read in
// the clinic's time zone and defaults to today.
func (h *SummaryHandler) Shift(w http.ResponseWriter, r *http.Request) {
	doc, ok := doctorOrForbidden(w, r)
	if !ok {
		return
	}
	day := h.now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}
	sum, err := h.summarizer.SummarizeShift(r.Context(), doc, day)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("shift summary failed", "error", err, "doctor_id", doc.ID)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
