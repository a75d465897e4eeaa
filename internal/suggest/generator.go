// Package suggest drives prescription suggestions on the doctor dashboard:
// generation through a model, field-level editing of the result and the
// commit that writes the canonical fragment to the patient record.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/medisync/internal/llm"
	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/pkg/logging"
)

// ErrGenerationUnavailable wraps every failure of the generation collaborator.
var ErrGenerationUnavailable = errors.New("suggest: generation unavailable")

// noHistory is sent when the patient has no recorded history.
const noHistory = "N/A"

// GenerationRequest is the input to a Generator. It doubles as the snapshot
// a session keeps of what was asked.
type GenerationRequest struct {
	Symptoms           string   `json:"symptoms"`
	Diagnosis          string   `json:"diagnosis"`
	PatientHistory     string   `json:"patientHistory,omitempty"`
	PriorPrescriptions []string `json:"priorPrescriptions,omitempty"`
	DoctorName         string   `json:"doctorName,omitempty"`
	DoctorPreferences  string   `json:"doctorPreferences,omitempty"`
}

// Context returns the symptoms/diagnosis pair recorded with a commit.
func (r GenerationRequest) Context() prescription.GenerationContext {
	return prescription.GenerationContext{
		Symptoms:  strings.TrimSpace(r.Symptoms),
		Diagnosis: strings.TrimSpace(r.Diagnosis),
	}
}

func (r GenerationRequest) clone() GenerationRequest {
	out := r
	out.PriorPrescriptions = append([]string(nil), r.PriorPrescriptions...)
	return out
}

// Generator produces a structured prescription suggestion.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (prescription.Suggestion, error)
}

const generationSystemPrompt = `You suggest prescriptions for a doctor. Given the patient's symptoms, diagnosis and medical history, answer with one JSON object:
{"medications":[{"name":"","dosage":"","frequency":"","duration":"","route":"","additionalInstructions":""}],
 "generalInstructions":"","followUp":"","additionalNotes":""}

Rules:
- Each medication needs name, dosage (e.g. "500mg tablet"), frequency (e.g. "every 8 hours"). duration, route (default "oral") and additionalInstructions are optional.
- If no medication is appropriate, return an empty medications array and explain why in additionalNotes.
- generalInstructions is overall advice that is not specific to one medication.
- followUp says when and under what conditions the patient should come back.
- additionalNotes holds warnings, interactions with the patient's history, contraindications and missing information the doctor should know about.
- Consider allergies, interactions and contraindications. If multiple medications are suggested they must be compatible.
- Base suggestions on standard medical practice and prioritize safety.

Respond with JSON only.`

// LLMGenerator implements Generator with a chat completion model.
type LLMGenerator struct {
	client    llm.Client
	maxTokens int32
	logger    *logging.Logger
}

var _ Generator = (*LLMGenerator)(nil)

func NewLLMGenerator(client llm.Client, maxTokens int32, logger *logging.Logger) *LLMGenerator {
	if client == nil {
		panic("suggest: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMGenerator{client: client, maxTokens: maxTokens, logger: logger}
}

// Generate asks the model for a suggestion. The result always has a non-nil
// medication slice and passes Validate.
func (g *LLMGenerator) Generate(ctx context.Context, req GenerationRequest) (prescription.Suggestion, error) {
	llmReq := llm.UserPrompt(generationSystemPrompt, generationPrompt(req))
	llmReq.MaxTokens = g.maxTokens

	resp, err := g.client.Complete(ctx, llmReq)
	if err != nil {
		return prescription.Suggestion{}, err
	}

	var out prescription.Suggestion
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		g.logger.Warn("generation response was not json", "error", err)
		return prescription.Suggestion{}, err
	}
	out = out.Normalize()
	if err := out.Validate(); err != nil {
		g.logger.Warn("generation response rejected", "error", err, "medications", len(out.Medications))
		return prescription.Suggestion{}, err
	}
	return out, nil
}

func generationPrompt(req GenerationRequest) string {
	var b strings.Builder
	doctor := "the attending doctor"
	if name := strings.TrimSpace(req.DoctorName); name != "" {
		doctor = name
	}
	fmt.Fprintf(&b, "Suggestion for: %s\n\n", doctor)
	b.WriteString("Patient Details:\n")
	fmt.Fprintf(&b, "Symptoms: %s\n", strings.TrimSpace(req.Symptoms))
	fmt.Fprintf(&b, "Diagnosis: %s\n", strings.TrimSpace(req.Diagnosis))
	history := strings.TrimSpace(req.PatientHistory)
	if history == "" {
		history = noHistory
	}
	fmt.Fprintf(&b, "Patient History: %s\n", history)
	if len(req.PriorPrescriptions) > 0 {
		b.WriteString("\nPrior Prescriptions:\n")
		for i, p := range req.PriorPrescriptions {
			fmt.Fprintf(&b, "--- %d ---\n%s\n", i+1, strings.TrimSpace(p))
		}
	}
	if prefs := strings.TrimSpace(req.DoctorPreferences); prefs != "" {
		fmt.Fprintf(&b, "\nKnown Doctor Preferences: %s\n", prefs)
	}
	return b.String()
}
