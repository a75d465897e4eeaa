package intake

import (
	"context"
	"sync"

	"github.com/wolfman30/medisync/internal/doctors"
)

type stubExtractor struct {
	mu       sync.Mutex
	result   Extraction
	err      error
	requests []ExtractionRequest
	// block, when set, is waited on before answering.
	block chan struct{}
}

func (s *stubExtractor) Extract(ctx context.Context, req ExtractionRequest) (Extraction, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	block := s.block
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Extraction{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func (s *stubExtractor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func str(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func testRoster() *doctors.Roster {
	return doctors.NewRoster([]doctors.Doctor{
		{ID: "doc1", Name: "Dr. Alisha Mehta", Specialty: "General Physician", Email: "alisha.mehta@medisync.now"},
		{ID: "doc4", Name: "Dr. John Peterson", Specialty: "ENT", Email: "john.peterson@medisync.now"},
	})
}

func scenarioA() Extraction {
	return Extraction{
		PatientName:     str("Sarah Connor"),
		PatientAge:      intPtr(35),
		Symptoms:        str("sore throat"),
		DoctorQuery:     str("Peterson"),
		AppointmentDate: str("2023-10-31"),
		AppointmentTime: str("14:30"),
	}
}
