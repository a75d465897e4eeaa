package records

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wolfman30/medisync/pkg/logging"
)

const (
	patientsCollection     = "patients"
	appointmentsCollection = "appointments"
)

// FirestoreBackend stores both collections as Firestore documents. Document
// ids are the record ids. Prescription appends use ArrayUnion, so appending a
// fragment identical to an existing entry is a no-op.
type FirestoreBackend struct {
	client *firestore.Client
	logger *logging.Logger
}

var _ Backend = (*FirestoreBackend)(nil)

// NewFirestoreBackend builds a backend on a Firestore client.
func NewFirestoreBackend(client *firestore.Client, logger *logging.Logger) *FirestoreBackend {
	if client == nil {
		panic("records: firestore client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FirestoreBackend{client: client, logger: logger}
}

func (b *FirestoreBackend) ListPatients(ctx context.Context) ([]Patient, error) {
	snaps, err := b.client.Collection(patientsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("records: list patients: %w", err)
	}
	out := make([]Patient, 0, len(snaps))
	for _, snap := range snaps {
		p, err := patientFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *FirestoreBackend) GetPatient(ctx context.Context, id string) (Patient, error) {
	snap, err := b.client.Collection(patientsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Patient{}, ErrPatientNotFound
		}
		return Patient{}, fmt.Errorf("records: get patient: %w", err)
	}
	return patientFromSnapshot(snap)
}

func (b *FirestoreBackend) CreatePatient(ctx context.Context, p Patient) (string, error) {
	if p.Prescriptions == nil {
		p.Prescriptions = []string{}
	}
	ref, _, err := b.client.Collection(patientsCollection).Add(ctx, p)
	if err != nil {
		return "", fmt.Errorf("records: add patient: %w", err)
	}
	return ref.ID, nil
}

func (b *FirestoreBackend) UpdatePatient(ctx context.Context, id string, u PatientUpdate) error {
	var updates []firestore.Update
	if u.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *u.Name})
	}
	if u.Age != nil {
		updates = append(updates, firestore.Update{Path: "age", Value: *u.Age})
	}
	if u.Diagnosis != nil {
		updates = append(updates, firestore.Update{Path: "diagnosis", Value: *u.Diagnosis})
	}
	if u.History != nil {
		updates = append(updates, firestore.Update{Path: "history", Value: *u.History})
	}
	if u.AvatarURL != nil {
		updates = append(updates, firestore.Update{Path: "avatarUrl", Value: *u.AvatarURL})
	}
	if len(updates) == 0 {
		return nil
	}
	return b.update(ctx, patientsCollection, id, updates, ErrPatientNotFound)
}

func (b *FirestoreBackend) AppendPrescription(ctx context.Context, id string, text string) error {
	return b.update(ctx, patientsCollection, id, []firestore.Update{
		{Path: "prescriptions", Value: firestore.ArrayUnion(text)},
	}, ErrPatientNotFound)
}

func (b *FirestoreBackend) SeedPatients(ctx context.Context, patients []Patient) error {
	batch := b.client.Batch()
	coll := b.client.Collection(patientsCollection)
	for _, p := range patients {
		if p.Prescriptions == nil {
			p.Prescriptions = []string{}
		}
		batch.Set(coll.Doc(p.ID), p)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("records: seed patients: %w", err)
	}
	b.logger.Debug("firestore seed committed", "count", len(patients))
	return nil
}

func (b *FirestoreBackend) ListAppointments(ctx context.Context) ([]Appointment, error) {
	snaps, err := b.client.Collection(appointmentsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("records: list appointments: %w", err)
	}
	out := make([]Appointment, 0, len(snaps))
	for _, snap := range snaps {
		var a Appointment
		if err := snap.DataTo(&a); err != nil {
			return nil, fmt.Errorf("records: decode appointment %s: %w", snap.Ref.ID, err)
		}
		a.ID = snap.Ref.ID
		a.AppointmentDate = a.AppointmentDate.UTC()
		out = append(out, a)
	}
	return out, nil
}

func (b *FirestoreBackend) CreateAppointment(ctx context.Context, a Appointment) (string, error) {
	ref, _, err := b.client.Collection(appointmentsCollection).Add(ctx, a)
	if err != nil {
		return "", fmt.Errorf("records: add appointment: %w", err)
	}
	return ref.ID, nil
}

func (b *FirestoreBackend) UpdateAppointmentStatus(ctx context.Context, id string, s AppointmentStatus) error {
	return b.update(ctx, appointmentsCollection, id, []firestore.Update{
		{Path: "status", Value: string(s)},
	}, ErrAppointmentNotFound)
}

func (b *FirestoreBackend) update(ctx context.Context, collection, id string, updates []firestore.Update, notFound error) error {
	if _, err := b.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return notFound
		}
		return fmt.Errorf("records: update %s: %w", collection, err)
	}
	return nil
}

func patientFromSnapshot(snap *firestore.DocumentSnapshot) (Patient, error) {
	var p Patient
	if err := snap.DataTo(&p); err != nil {
		return Patient{}, fmt.Errorf("records: decode patient %s: %w", snap.Ref.ID, err)
	}
	p.ID = snap.Ref.ID
	if p.Prescriptions == nil {
		p.Prescriptions = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
