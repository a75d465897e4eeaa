package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wolfman30/medisync/internal/intake"
	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/internal/suggest"
	"github.com/wolfman30/medisync/internal/summary"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, records.ErrPatientNotFound),
		errors.Is(err, records.ErrAppointmentNotFound),
		errors.Is(err, suggest.ErrNoSession),
		errors.Is(err, suggest.ErrNoPatient):
		return http.StatusNotFound
	case errors.Is(err, records.ErrNameRequired),
		errors.Is(err, records.ErrInvalidAge),
		errors.Is(err, records.ErrSymptomsRequired),
		errors.Is(err, records.ErrDoctorRequired),
		errors.Is(err, records.ErrDateRequired),
		errors.Is(err, records.ErrEmptyPrescription),
		errors.Is(err, records.ErrInvalidStatus),
		errors.Is(err, records.ErrTemporaryPatient),
		errors.Is(err, intake.ErrUnknownDoctor),
		errors.Is(err, prescription.ErrEmptySuggestion),
		errors.Is(err, prescription.ErrMedicationIncomplete),
		errors.Is(err, suggest.ErrIndexOutOfRange),
		errors.Is(err, suggest.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, records.ErrInvalidStatusTransition),
		errors.Is(err, intake.ErrStaleResult),
		errors.Is(err, suggest.ErrSuperseded),
		errors.Is(err, suggest.ErrAlreadyCommitted):
		return http.StatusConflict
	case errors.Is(err, suggest.ErrGenerationUnavailable),
		errors.Is(err, summary.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, records.ErrPromotionPartialFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with its mapped status. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	jsonError(w, msg, status)
}
