package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/pkg/logging"
)

var recordsTracer = otel.Tracer("medisync.internal.records")

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithLocation sets the clinic location used to read prescription timestamps.
func WithLocation(loc *time.Location) StoreOption {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithMetrics records refetch and mutation counters.
func WithMetrics(m *metrics.StoreMetrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock overrides the wall clock used for createdAt stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store owns the in-memory projections of the patient and appointment
// collections. Mutations write through to the backend and then await a full
// refetch of the affected collection before returning. Concurrent refetches
// are not ordered; whichever completes last becomes the visible state.
type Store struct {
	backend Backend
	logger  *logging.Logger
	metrics *metrics.StoreMetrics
	loc     *time.Location
	now     func() time.Time

	mu                 sync.RWMutex
	patients           []Patient
	appointments       []Appointment
	patientsLoaded     bool
	appointmentsLoaded bool
}

// NewStore builds a Store over backend.
func NewStore(backend Backend, logger *logging.Logger, opts ...StoreOption) *Store {
	if backend == nil {
		panic("records: backend required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		backend: backend,
		logger:  logger,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Location returns the clinic location timestamps are read in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Refresh refetches both collections.
func (s *Store) Refresh(ctx context.Context) error {
	return errors.Join(s.RefreshPatients(ctx), s.RefreshAppointments(ctx))
}

// RefreshPatients refetches the patient collection and recomputes each
// patient's effective activity timestamp.
func (s *Store) RefreshPatients(ctx context.Context) error {
	ctx, span := recordsTracer.Start(ctx, "records.refresh_patients")
	defer span.End()

	fetched, err := s.backend.ListPatients(ctx)
	s.metrics.ObserveRefresh("patients", err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("records: list patients: %w", err)
	}
	for i := range fetched {
		fetched[i].LastActivity = effectiveActivity(fetched[i], s.loc, s.logger, s.metrics.ObserveMalformedTimestamp)
	}
	span.SetAttributes(attribute.Int("medisync.patient_count", len(fetched)))

	s.mu.Lock()
	s.patients = fetched
	s.patientsLoaded = true
	s.mu.Unlock()
	return nil
}

// RefreshAppointments refetches the appointment collection.
func (s *Store) RefreshAppointments(ctx context.Context) error {
	ctx, span := recordsTracer.Start(ctx, "records.refresh_appointments")
	defer span.End()

	fetched, err := s.backend.ListAppointments(ctx)
	s.metrics.ObserveRefresh("appointments", err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("records: list appointments: %w", err)
	}

	s.mu.Lock()
	s.appointments = fetched
	s.appointmentsLoaded = true
	s.mu.Unlock()
	return nil
}

// ListPatients returns the patient projection, filtered by opts.Search and
// then sorted. The projection is loaded on first use.
func (s *Store) ListPatients(ctx context.Context, opts ListOptions) ([]Patient, error) {
	if err := s.ensurePatients(ctx); err != nil {
		return nil, err
	}
	opts = opts.normalized()

	s.mu.RLock()
	snapshot := make([]Patient, len(s.patients))
	for i, p := range s.patients {
		snapshot[i] = p.clone()
	}
	s.mu.RUnlock()

	out := filterPatients(snapshot, opts.Search)
	sortPatients(out, opts.Sort, opts.Direction)
	return out, nil
}

// ListAppointments returns the appointment projection in fetch order.
func (s *Store) ListAppointments(ctx context.Context) ([]Appointment, error) {
	if err := s.ensureAppointments(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, len(s.appointments))
	copy(out, s.appointments)
	return out, nil
}

// AppointmentsForDoctor returns the doctor's appointments, latest first.
func (s *Store) AppointmentsForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	all, err := s.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(all))
	for _, a := range all {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	sortAppointmentsNewestFirst(out)
	return out, nil
}

// GetPatient reads one patient through to the backend.
func (s *Store) GetPatient(ctx context.Context, id string) (Patient, error) {
	if IsTemporaryID(id) {
		return Patient{}, ErrTemporaryPatient
	}
	p, err := s.backend.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return Patient{}, err
		}
		return Patient{}, fmt.Errorf("records: get patient: %w", err)
	}
	p.LastActivity = effectiveActivity(p, s.loc, s.logger, s.metrics.ObserveMalformedTimestamp)
	return p, nil
}

// AddPatient persists a new patient and returns it as constructed here, with
// the store-assigned id. The patient collection is refetched before return.
func (s *Store) AddPatient(ctx context.Context, in PatientInput) (Patient, error) {
	ctx, span := recordsTracer.Start(ctx, "records.add_patient")
	defer span.End()

	if err := in.Validate(); err != nil {
		return Patient{}, err
	}
	p := Patient{
		Name:          strings.TrimSpace(in.Name),
		Age:           in.Age,
		Diagnosis:     in.Diagnosis,
		History:       in.History,
		AvatarURL:     in.AvatarURL,
		Prescriptions: append([]string{}, in.Prescriptions...),
		CreatedAt:     s.now().UTC(),
	}
	id, err := s.backend.CreatePatient(ctx, p)
	s.metrics.ObserveMutation("add_patient", err)
	if err != nil {
		span.RecordError(err)
		return Patient{}, fmt.Errorf("records: create patient: %w", err)
	}
	p.ID = id
	p.LastActivity = effectiveActivity(p, s.loc, s.logger, nil)
	span.SetAttributes(attribute.String("medisync.patient_id", id))

	s.refetchPatientsAfter(ctx, "add_patient")
	return p, nil
}

// UpdatePatient applies a partial update. Temporary patients cannot be updated.
func (s *Store) UpdatePatient(ctx context.Context, id string, u PatientUpdate) error {
	ctx, span := recordsTracer.Start(ctx, "records.update_patient")
	defer span.End()
	span.SetAttributes(attribute.String("medisync.patient_id", id))

	if IsTemporaryID(id) {
		return ErrTemporaryPatient
	}
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Empty() {
		return nil
	}
	err := s.backend.UpdatePatient(ctx, id, u)
	s.metrics.ObserveMutation("update_patient", err)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrPatientNotFound) {
			return err
		}
		return fmt.Errorf("records: update patient: %w", err)
	}
	s.refetchPatientsAfter(ctx, "update_patient")
	return nil
}

// AppendPrescription appends a committed prescription fragment to a
// persistent patient's sequence.
func (s *Store) AppendPrescription(ctx context.Context, id string, text string) error {
	ctx, span := recordsTracer.Start(ctx, "records.append_prescription")
	defer span.End()
	span.SetAttributes(attribute.String("medisync.patient_id", id))

	if IsTemporaryID(id) {
		return ErrTemporaryPatient
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPrescription
	}
	err := s.backend.AppendPrescription(ctx, id, text)
	s.metrics.ObserveMutation("append_prescription", err)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrPatientNotFound) {
			return err
		}
		return fmt.Errorf("records: append prescription: %w", err)
	}
	s.refetchPatientsAfter(ctx, "append_prescription")
	return nil
}

// AddAppointment persists a new Scheduled appointment and returns it as
// constructed here, with the store-assigned id.
func (s *Store) AddAppointment(ctx context.Context, in AppointmentInput) (Appointment, error) {
	ctx, span := recordsTracer.Start(ctx, "records.add_appointment")
	defer span.End()

	if err := in.Validate(); err != nil {
		return Appointment{}, err
	}
	a := Appointment{
		PatientName:     strings.TrimSpace(in.PatientName),
		PatientAge:      in.PatientAge,
		Symptoms:        strings.TrimSpace(in.Symptoms),
		DoctorID:        in.DoctorID,
		DoctorName:      in.DoctorName,
		AppointmentDate: in.AppointmentDate.UTC(),
		Status:          StatusScheduled,
	}
	id, err := s.backend.CreateAppointment(ctx, a)
	s.metrics.ObserveMutation("add_appointment", err)
	if err != nil {
		span.RecordError(err)
		return Appointment{}, fmt.Errorf("records: create appointment: %w", err)
	}
	a.ID = id
	span.SetAttributes(attribute.String("medisync.appointment_id", id))

	s.refetchAppointmentsAfter(ctx, "add_appointment")
	return a, nil
}

// SetAppointmentStatus moves an appointment to status. Only Scheduled to
// Completed is allowed.
func (s *Store) SetAppointmentStatus(ctx context.Context, id string, status AppointmentStatus) error {
	ctx, span := recordsTracer.Start(ctx, "records.set_appointment_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("medisync.appointment_id", id),
		attribute.String("medisync.status", string(status)),
	)

	if !status.Valid() {
		return ErrInvalidStatus
	}
	current, err := s.appointment(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, status)
	}
	err = s.backend.UpdateAppointmentStatus(ctx, id, status)
	s.metrics.ObserveMutation("set_appointment_status", err)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("records: update appointment status: %w", err)
	}
	s.refetchAppointmentsAfter(ctx, "set_appointment_status")
	return nil
}

// PromoteTemporary persists a temporary patient and appends its first
// prescription to the new record. The returned patient replaces the temporary
// one in any held reference; the temporary id is never written.
//
// If the create succeeds but the append fails, a *PromotionError carrying the
// orphaned persistent patient is returned. Nothing is retried or rolled back.
//
// There is no store-level guard against promoting the same temporary patient
// twice: each call creates a new record. Callers holding the temporary value
// must swap in the returned patient, as the suggestion workbench does.
func (s *Store) PromoteTemporary(ctx context.Context, temp Patient, prescriptionText string) (Patient, error) {
	ctx, span := recordsTracer.Start(ctx, "records.promote_temporary")
	defer span.End()
	span.SetAttributes(attribute.String("medisync.temp_id", temp.ID))

	if !temp.IsTemporary() {
		return Patient{}, ErrNotTemporary
	}
	if strings.TrimSpace(prescriptionText) == "" {
		return Patient{}, ErrEmptyPrescription
	}
	if strings.TrimSpace(temp.Name) == "" {
		return Patient{}, ErrNameRequired
	}

	p := temp.clone()
	p.ID = ""
	p.LastActivity = time.Time{}
	if p.Prescriptions == nil {
		p.Prescriptions = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}

	id, err := s.backend.CreatePatient(ctx, p)
	s.metrics.ObserveMutation("promote_create", err)
	if err != nil {
		span.RecordError(err)
		return Patient{}, fmt.Errorf("records: promote create: %w", err)
	}
	p.ID = id
	span.SetAttributes(attribute.String("medisync.patient_id", id))

	if err := s.backend.AppendPrescription(ctx, id, prescriptionText); err != nil {
		s.metrics.ObserveMutation("promote_append", err)
		span.RecordError(err)
		s.refetchPatientsAfter(ctx, "promote_temporary")
		p.LastActivity = p.CreatedAt
		s.logger.Error("promotion left patient without prescription",
			"temp_id", temp.ID, "patient_id", id, "error", err)
		return Patient{}, &PromotionError{TemporaryID: temp.ID, Patient: p, Err: err}
	}
	s.metrics.ObserveMutation("promote_append", nil)
	s.refetchPatientsAfter(ctx, "promote_temporary")

	promoted, ok := s.cachedPatient(id)
	if !ok {
		p.Prescriptions = append(p.Prescriptions, prescriptionText)
		p.LastActivity = effectiveActivity(p, s.loc, s.logger, nil)
		promoted = p
	}
	s.logger.Info("temporary patient promoted", "temp_id", temp.ID, "patient_id", id)
	return promoted, nil
}

// PatientsNamed returns every patient whose trimmed name equals name, ignoring
// case. Names are not unique; callers must not assume one match.
func (s *Store) PatientsNamed(ctx context.Context, name string) ([]Patient, error) {
	if err := s.ensurePatients(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Patient
	for _, p := range s.patients {
		if sameName(p.Name, name) {
			out = append(out, p.clone())
		}
	}
	return out, nil
}

// ResolveAppointmentPatient returns the first stored patient whose name
// matches the appointment's, or a temporary patient built from the appointment
// when none does. The boolean reports whether a stored patient was found.
func (s *Store) ResolveAppointmentPatient(ctx context.Context, appt Appointment) (Patient, bool, error) {
	matches, err := s.PatientsNamed(ctx, appt.PatientName)
	if err != nil {
		return Patient{}, false, err
	}
	if len(matches) > 0 {
		return matches[0], true, nil
	}
	return TemporaryPatientFromAppointment(appt, s.now()), false, nil
}

// SeedIfEmpty writes seed when the patient collection is empty. It reports
// whether seeding happened.
func (s *Store) SeedIfEmpty(ctx context.Context, seed []Patient) (bool, error) {
	existing, err := s.backend.ListPatients(ctx)
	if err != nil {
		return false, fmt.Errorf("records: check seed: %w", err)
	}
	if len(existing) > 0 || len(seed) == 0 {
		return false, nil
	}
	if err := s.backend.SeedPatients(ctx, seed); err != nil {
		return false, fmt.Errorf("records: seed patients: %w", err)
	}
	s.logger.Info("seeded initial patients", "count", len(seed))
	s.refetchPatientsAfter(ctx, "seed")
	return true, nil
}

// refetchPatientsAfter runs the post-mutation refetch. The write already
// succeeded, so a failed refetch is logged and leaves the previous projection
// visible until the next refresh.
func (s *Store) refetchPatientsAfter(ctx context.Context, op string) {
	if err := s.RefreshPatients(ctx); err != nil {
		s.logger.Warn("refetch after write failed", "operation", op, "collection", "patients", "error", err)
	}
}

func (s *Store) refetchAppointmentsAfter(ctx context.Context, op string) {
	if err := s.RefreshAppointments(ctx); err != nil {
		s.logger.Warn("refetch after write failed", "operation", op, "collection", "appointments", "error", err)
	}
}

func (s *Store) ensurePatients(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.patientsLoaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.RefreshPatients(ctx)
}

func (s *Store) ensureAppointments(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.appointmentsLoaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.RefreshAppointments(ctx)
}

func (s *Store) cachedPatient(id string) (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patients {
		if p.ID == id {
			return p.clone(), true
		}
	}
	return Patient{}, false
}

// appointment finds an appointment in the projection, refetching once if it
// is not there yet.
func (s *Store) appointment(ctx context.Context, id string) (Appointment, error) {
	find := func() (Appointment, bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, a := range s.appointments {
			if a.ID == id {
				return a, true
			}
		}
		return Appointment{}, false
	}
	if a, ok := find(); ok {
		return a, nil
	}
	if err := s.RefreshAppointments(ctx); err != nil {
		return Appointment{}, err
	}
	if a, ok := find(); ok {
		return a, nil
	}
	return Appointment{}, ErrAppointmentNotFound
}
