package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wolfman30/medisync/internal/llm"
	"github.com/wolfman30/medisync/pkg/logging"
)

const extractionSystemPrompt = `You help a front desk operator book medical appointments.
Extract appointment details from a voice transcript and answer with a single JSON object using these keys:
patientName (string), patientAge (number), symptoms (string), doctorQuery (string),
appointmentDateYYYYMMDD (string), appointmentTimeHHMM (string).

Rules:
- Omit any key that is not clearly mentioned. Never guess.
- doctorQuery is the name or part of the name of the doctor the patient wants to see.
- appointmentDateYYYYMMDD: convert relative dates such as "today", "tomorrow" or "next Monday" to YYYY-MM-DD using the current date. For a specific date without a year assume the current year.
- appointmentTimeHHMM: 24-hour HH:MM. "morning" is 09:00, "afternoon" is 14:00, "evening" is 18:00. Convert specific times such as "3 PM" or "10:30 AM".

Example:
Transcript: "Book an appointment for Sarah Connor, she is 35 years old and has a sore throat, with Dr. Peterson for next Tuesday at 2:30 PM."
Current date: 2023-10-26
Answer: {"patientName":"Sarah Connor","patientAge":35,"symptoms":"sore throat","doctorQuery":"Peterson","appointmentDateYYYYMMDD":"2023-10-31","appointmentTimeHHMM":"14:30"}

Respond with JSON only.`

// LLMExtractor implements Extractor with a chat completion model.
type LLMExtractor struct {
	client    llm.Client
	maxTokens int32
	logger    *logging.Logger
}

var _ Extractor = (*LLMExtractor)(nil)

func NewLLMExtractor(client llm.Client, maxTokens int32, logger *logging.Logger) *LLMExtractor {
	if client == nil {
		panic("intake: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &LLMExtractor{client: client, maxTokens: maxTokens, logger: logger}
}

func (e *LLMExtractor) Extract(ctx context.Context, req ExtractionRequest) (Extraction, error) {
	prompt := fmt.Sprintf("Transcript: %q\nCurrent date: %s", req.Transcript, req.CurrentDate)
	llmReq := llm.UserPrompt(extractionSystemPrompt, prompt)
	llmReq.MaxTokens = e.maxTokens

	resp, err := e.client.Complete(ctx, llmReq)
	if err != nil {
		return Extraction{}, err
	}

	var wire extractionWire
	if err := llm.DecodeJSON(resp.Text, &wire); err != nil {
		e.logger.Warn("extraction response was not json", "error", err)
		return Extraction{}, err
	}
	return wire.extraction(), nil
}

// extractionWire tolerates ages sent as strings and blank values.
type extractionWire struct {
	PatientName     string          `json:"patientName"`
	PatientAge      json.RawMessage `json:"patientAge"`
	Symptoms        string          `json:"symptoms"`
	DoctorQuery     string          `json:"doctorQuery"`
	AppointmentDate string          `json:"appointmentDateYYYYMMDD"`
	AppointmentTime string          `json:"appointmentTimeHHMM"`
}

func (w extractionWire) extraction() Extraction {
	var out Extraction
	out.PatientName = nonBlank(w.PatientName)
	out.Symptoms = nonBlank(w.Symptoms)
	out.DoctorQuery = nonBlank(w.DoctorQuery)
	out.AppointmentDate = nonBlank(w.AppointmentDate)
	out.AppointmentTime = nonBlank(w.AppointmentTime)
	if age, ok := parseAge(w.PatientAge); ok {
		out.PatientAge = &age
	}
	return out
}

func nonBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseAge(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	}
	if n < 0 || n > 150 || math.IsNaN(n) {
		return 0, false
	}
	return int(math.Round(n)), true
}
