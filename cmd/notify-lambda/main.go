package main

import (
	"context"
	"encoding/json"
	"fmt"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/medisync/cmd/mainconfig"
	"github.com/wolfman30/medisync/internal/app/bootstrap"
	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/pkg/logging"
)

// bookingNotifier is the part of notify.Service the consumer needs.
type bookingNotifier interface {
	NotifyAppointmentBooked(ctx context.Context, doc doctors.Doctor, evt events.AppointmentBookedV1) error
}

type consumer struct {
	roster   *doctors.Roster
	notifier bookingNotifier
	logger   *logging.Logger
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("notify-lambda")

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		panic(fmt.Errorf("load aws config: %w", err))
	}

	c := &consumer{
		roster:   doctors.DefaultRoster(),
		notifier: bootstrap.BuildNotifier(cfg, &awsCfg, logger),
		logger:   logger,
	}
	lambda.Start(c.handle)
}

// handle processes one SQS batch. Records that fail are reported back so
// only they are redelivered.
func (c *consumer) handle(ctx context.Context, evt lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, record := range evt.Records {
		if err := c.process(ctx, record); err != nil {
			c.logger.Error("notification failed", "message_id", record.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	return resp, nil
}

func (c *consumer) process(ctx context.Context, record lambdaevents.SQSMessage) error {
	var env events.Envelope
	if err := json.Unmarshal([]byte(record.Body), &env); err != nil {
		// A malformed body will never succeed; drop it.
		c.logger.Warn("discarding undecodable message", "message_id", record.MessageId, "error", err)
		return nil
	}
	if env.EventType != events.TypeAppointmentBooked {
		return nil
	}

	var booked events.AppointmentBookedV1
	if err := json.Unmarshal(env.Payload, &booked); err != nil {
		c.logger.Warn("discarding malformed booking event", "event_id", env.EventID, "error", err)
		return nil
	}
	doc, err := c.roster.ByID(booked.DoctorID)
	if err != nil {
		c.logger.Warn("booking for doctor not on roster", "doctor_id", booked.DoctorID)
		return nil
	}
	return c.notifier.NotifyAppointmentBooked(ctx, doc, booked)
}
