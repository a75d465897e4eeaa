package records

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend is an in-process Backend. Lists return insertion order.
type MemoryBackend struct {
	mu           sync.RWMutex
	patients     []Patient
	appointments []Appointment
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) ListPatients(ctx context.Context) ([]Patient, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Patient, len(b.patients))
	for i, p := range b.patients {
		out[i] = p.clone()
	}
	return out, nil
}

func (b *MemoryBackend) GetPatient(ctx context.Context, id string) (Patient, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.patientIndex(id); i >= 0 {
		return b.patients[i].clone(), nil
	}
	return Patient{}, ErrPatientNotFound
}

func (b *MemoryBackend) CreatePatient(ctx context.Context, p Patient) (string, error) {
	p = p.clone()
	p.ID = uuid.NewString()
	p.LastActivity = p.CreatedAt
	if p.Prescriptions == nil {
		p.Prescriptions = []string{}
	}
	b.mu.Lock()
	b.patients = append(b.patients, p)
	b.mu.Unlock()
	return p.ID, nil
}

func (b *MemoryBackend) UpdatePatient(ctx context.Context, id string, u PatientUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.patientIndex(id)
	if i < 0 {
		return ErrPatientNotFound
	}
	b.patients[i] = u.Apply(b.patients[i])
	return nil
}

func (b *MemoryBackend) AppendPrescription(ctx context.Context, id string, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.patientIndex(id)
	if i < 0 {
		return ErrPatientNotFound
	}
	b.patients[i].Prescriptions = append(b.patients[i].Prescriptions, text)
	return nil
}

func (b *MemoryBackend) SeedPatients(ctx context.Context, patients []Patient) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range patients {
		p = p.clone()
		if i := b.patientIndex(p.ID); i >= 0 {
			b.patients[i] = p
			continue
		}
		b.patients = append(b.patients, p)
	}
	return nil
}

func (b *MemoryBackend) ListAppointments(ctx context.Context) ([]Appointment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Appointment, len(b.appointments))
	copy(out, b.appointments)
	return out, nil
}

func (b *MemoryBackend) CreateAppointment(ctx context.Context, a Appointment) (string, error) {
	a.ID = uuid.NewString()
	b.mu.Lock()
	b.appointments = append(b.appointments, a)
	b.mu.Unlock()
	return a.ID, nil
}

func (b *MemoryBackend) UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.appointments {
		if b.appointments[i].ID == id {
			b.appointments[i].Status = status
			return nil
		}
	}
	return ErrAppointmentNotFound
}

func (b *MemoryBackend) patientIndex(id string) int {
	for i := range b.patients {
		if b.patients[i].ID == id {
			return i
		}
	}
	return -1
}
