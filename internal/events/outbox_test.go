package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/medisync/pkg/logging"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)
	publisher := NewOutboxPublisher(store)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "patient:7", TypePrescriptionCommitted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env, err := publisher.Publish(context.Background(), "patient:7", PrescriptionCommittedV1{PatientID: "7", MedicationCount: 2})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if env.EventType != TypePrescriptionCommitted {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "created_at"}).
		AddRow(id, "patient:7", TypePrescriptionCommitted, []byte(`{"event_type":"prescription.committed.v1"}`), now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type recordingHandler struct {
	failFor uuid.UUID
	handled []OutboxEntry
}

func (h *recordingHandler) Handle(_ context.Context, entry OutboxEntry) error {
	if entry.ID == h.failFor {
		return errors.New("queue unavailable")
	}
	h.handled = append(h.handled, entry)
	return nil
}

func TestDelivererDrainSkipsFailedEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)
	okID, badID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	payload, _ := json.Marshal(map[string]string{"event_type": TypeAppointmentBooked})
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "created_at"}).
		AddRow(badID, "appointment:1", TypeAppointmentBooked, payload, now).
		AddRow(okID, "appointment:2", TypeAppointmentBooked, payload, now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(5)).WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox").WithArgs(okID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	handler := &recordingHandler{failFor: badID}
	delivered := NewDeliverer(store, handler, logging.Discard()).WithBatchSize(5).Drain(context.Background())
	if delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", delivered)
	}
	if len(handler.handled) != 1 || handler.handled[0].ID != okID {
		t.Fatalf("unexpected handled entries: %+v", handler.handled)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
