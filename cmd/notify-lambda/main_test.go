package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/pkg/logging"
)

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) NotifyAppointmentBooked(_ context.Context, doc doctors.Doctor, evt events.AppointmentBookedV1) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, doc.Email+":"+evt.AppointmentID)
	return nil
}

func sqsMessage(t *testing.T, id string, evt events.CanonicalEvent) lambdaevents.SQSMessage {
	t.Helper()
	env, err := events.NewEnvelope("appointment:"+id, evt)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return lambdaevents.SQSMessage{MessageId: "msg-" + id, Body: string(body)}
}

func newConsumer(n bookingNotifier) *consumer {
	return &consumer{roster: doctors.DefaultRoster(), notifier: n, logger: logging.Discard()}
}

func TestHandleSendsBookingNotices(t *testing.T) {
	n := &recordingNotifier{}
	c := newConsumer(n)
	at := time.Date(2023, 10, 31, 14, 30, 0, 0, time.UTC)

	resp, err := c.handle(context.Background(), lambdaevents.SQSEvent{Records: []lambdaevents.SQSMessage{
		sqsMessage(t, "a1", events.AppointmentBookedV1{AppointmentID: "a1", DoctorID: "doc2", PatientName: "Sarah Connor", AppointmentDate: at}),
		sqsMessage(t, "a2", events.AppointmentCompletedV1{AppointmentID: "a2", DoctorID: "doc1", CompletedAt: at}),
		{MessageId: "junk", Body: "not json"},
		sqsMessage(t, "a3", events.AppointmentBookedV1{AppointmentID: "a3", DoctorID: "doc99"}),
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.BatchItemFailures)
	}
	if len(n.sent) != 1 || n.sent[0] != "vikram.rao@medisync.now:a1" {
		t.Fatalf("unexpected notices %v", n.sent)
	}
}

func TestHandleReportsFailedRecords(t *testing.T) {
	c := newConsumer(&recordingNotifier{err: errors.New("ses throttled")})

	resp, err := c.handle(context.Background(), lambdaevents.SQSEvent{Records: []lambdaevents.SQSMessage{
		sqsMessage(t, "a1", events.AppointmentBookedV1{AppointmentID: "a1", DoctorID: "doc1"}),
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "msg-a1" {
		t.Fatalf("expected msg-a1 to be retried, got %+v", resp.BatchItemFailures)
	}
}
