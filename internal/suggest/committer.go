package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medisync/internal/archive"
	"github.com/wolfman30/medisync/internal/compliance"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

var tracer = otel.Tracer("medisync.internal.suggest")

var (
	ErrNoSession = errors.New("suggest: no suggestion to commit")
	ErrNoPatient = errors.New("suggest: no patient selected")
)

// Committer writes an edited suggestion to the patient record. The record
// write is the commit; archiving, auditing and publishing follow it and are
// best effort.
type Committer struct {
	store     *records.Store
	archive   *archive.Store
	audit     *compliance.AuditService
	publisher events.Publisher
	metrics   *metrics.WorkflowMetrics
	loc       *time.Location
	now       func() time.Time
	logger    *logging.Logger
}

type CommitterOption func(*Committer)

func WithArchive(a *archive.Store) CommitterOption {
	return func(c *Committer) { c.archive = a }
}

func WithAudit(a *compliance.AuditService) CommitterOption {
	return func(c *Committer) { c.audit = a }
}

func WithPublisher(p events.Publisher) CommitterOption {
	return func(c *Committer) {
		if p != nil {
			c.publisher = p
		}
	}
}

func WithCommitMetrics(m *metrics.WorkflowMetrics) CommitterOption {
	return func(c *Committer) { c.metrics = m }
}

// WithClock overrides the commit time source.
func WithClock(now func() time.Time) CommitterOption {
	return func(c *Committer) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCommitter writes fragments in the store's clinic location.
func NewCommitter(store *records.Store, logger *logging.Logger, opts ...CommitterOption) *Committer {
	if store == nil {
		panic("suggest: record store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Committer{
		store:     store,
		publisher: events.NopPublisher{},
		loc:       store.Location(),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit formats the session's suggestion against the context it was
// generated for and appends it to the patient. Temporary patients are
// promoted first. The returned patient replaces the session's patient in
// any held reference.
//
// A failed commit leaves the session editable so it can be retried, except
// after a partial promotion failure, which returns *records.PromotionError.
func (c *Committer) Commit(ctx context.Context, s *Session) (records.Patient, error) {
	patient, promoted, err := c.commit(ctx, s)
	c.metrics.ObserveCommit(promoted, err)
	return patient, err
}

func (c *Committer) commit(ctx context.Context, s *Session) (records.Patient, bool, error) {
	if s == nil {
		return records.Patient{}, false, ErrNoSession
	}
	patient := s.Patient()
	if patient.ID == "" {
		return records.Patient{}, false, ErrNoPatient
	}
	promote := patient.IsTemporary()

	ctx, span := tracer.Start(ctx, "suggest.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("medisync.patient_id", patient.ID),
		attribute.Bool("medisync.promote", promote),
	)

	sug, err := s.claim()
	if err != nil {
		return records.Patient{}, promote, err
	}
	sug = sug.Normalize()
	if err := sug.Validate(); err != nil {
		s.release()
		return records.Patient{}, promote, err
	}

	at := c.now().In(c.loc)
	gc := s.Context()
	fragment := prescription.Format(sug, gc, at)
	doctor := s.Doctor()

	var updated records.Patient
	if promote {
		updated, err = c.store.PromoteTemporary(ctx, patient, fragment)
		var perr *records.PromotionError
		if errors.As(err, &perr) {
			span.RecordError(err)
			if auditErr := c.audit.LogPromotionOrphaned(ctx, perr.TemporaryID, perr.Patient.ID, doctor.ID, perr.Err); auditErr != nil {
				c.logger.Error("failed to audit orphaned promotion", "error", auditErr, "patient_id", perr.Patient.ID)
			}
			return records.Patient{}, promote, err
		}
		if err != nil {
			s.release()
			span.RecordError(err)
			return records.Patient{}, promote, err
		}
	} else {
		if err := c.store.AppendPrescription(ctx, patient.ID, fragment); err != nil {
			s.release()
			span.RecordError(err)
			return records.Patient{}, promote, err
		}
		updated, err = c.store.GetPatient(ctx, patient.ID)
		if err != nil {
			c.logger.Warn("commit refetch failed, returning local copy", "error", err, "patient_id", patient.ID)
			updated = patient
			updated.Prescriptions = append(append([]string(nil), patient.Prescriptions...), fragment)
			if at.After(updated.LastActivity) {
				updated.LastActivity = at
			}
		}
	}

	promotedFrom := ""
	if promote {
		promotedFrom = patient.ID
	}
	c.afterCommit(ctx, updated, promotedFrom, doctor.ID, doctor.Name, sug, gc, fragment, at)

	c.logger.Info("prescription committed",
		"patient_id", updated.ID,
		"promoted_from", promotedFrom,
		"doctor_id", doctor.ID,
		"medications", len(sug.Medications),
	)
	return updated, promote, nil
}

func (c *Committer) afterCommit(ctx context.Context, p records.Patient, promotedFrom, doctorID, doctorName string, sug prescription.Suggestion, gc prescription.GenerationContext, fragment string, at time.Time) {
	key, err := c.archive.ArchivePrescription(ctx, archive.PrescriptionRecord{
		PatientID:     p.ID,
		PromotedFrom:  promotedFrom,
		DoctorID:      doctorID,
		DoctorName:    doctorName,
		FormatVersion: prescription.FormatVersion,
		Fragment:      fragment,
		Suggestion:    sug,
		Context:       gc,
		CommittedAt:   at.UTC(),
	})
	if err != nil {
		c.logger.Warn("prescription archive failed", "error", err, "patient_id", p.ID)
	}

	names := make([]string, 0, len(sug.Medications))
	for _, m := range sug.Medications {
		names = append(names, m.Name)
	}
	if err := c.audit.LogPrescriptionCommitted(ctx, compliance.PrescriptionCommit{
		PatientID:     p.ID,
		DoctorID:      doctorID,
		PromotedFrom:  promotedFrom,
		Medications:   names,
		ArchiveKey:    key,
		FormatVersion: prescription.FormatVersion,
	}); err != nil {
		c.logger.Error("prescription audit failed", "error", err, "patient_id", p.ID)
	}

	evt := events.PrescriptionCommittedV1{
		PatientID:       p.ID,
		PromotedFrom:    promotedFrom,
		DoctorID:        doctorID,
		MedicationCount: len(sug.Medications),
		ArchiveKey:      key,
		PrescribedAt:    at.UTC(),
	}
	if _, err := c.publisher.Publish(ctx, fmt.Sprintf("patient:%s", p.ID), evt); err != nil {
		c.logger.Warn("failed to publish prescription committed", "error", err, "patient_id", p.ID)
	}
}
