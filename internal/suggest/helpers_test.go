package suggest

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/llm"
	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/internal/records"
)

type fakeLLM struct {
	text string
	err  error
	req  llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.req = req
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.text}, nil
}

type stubGenerator struct {
	mu       sync.Mutex
	result   prescription.Suggestion
	err      error
	requests []GenerationRequest
	block    chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, req GenerationRequest) (prescription.Suggestion, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	block := g.block
	g.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return prescription.Suggestion{}, ctx.Err()
		}
	}
	return g.result.Clone(), g.err
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *stubGenerator) last() GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

// appendFailBackend creates patients but refuses every append.
type appendFailBackend struct {
	*records.MemoryBackend
}

func (appendFailBackend) AppendPrescription(context.Context, string, string) error {
	return errors.New("write quota exceeded")
}

var testDoctor = doctors.Doctor{ID: "doc1", Name: "Dr. Alisha Mehta", Email: "alisha.mehta@medisync.now"}

func feverSuggestion() prescription.Suggestion {
	return prescription.Suggestion{
		Medications: []prescription.Medication{
			{Name: "Paracetamol", Dosage: "500mg tablet", Frequency: "every 6 hours", Duration: "3 days", Route: "oral"},
			{Name: "ORS", Dosage: "1 sachet", Frequency: "after each loose stool"},
		},
		GeneralInstructions: "Rest and stay hydrated.",
		FollowUp:            "Return if fever persists beyond 3 days.",
	}
}
