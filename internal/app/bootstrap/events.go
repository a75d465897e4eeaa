package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/internal/notify"
	"github.com/wolfman30/medisync/pkg/logging"
)

// EventsPipeline is the publisher handed to the workflows plus an optional
// outbox deliverer the caller must start.
type EventsPipeline struct {
	Publisher events.Publisher
	Deliverer *events.Deliverer
	Mode      string
}

// BuildEvents picks the event transport. With a Postgres pool events go
// through the outbox and are forwarded to SQS when a queue is configured.
// Without a pool they are sent to SQS directly.
func BuildEvents(cfg *appconfig.Config, awsCfg *aws.Config, pool *pgxpool.Pool, logger *logging.Logger) (EventsPipeline, error) {
	if cfg == nil {
		return EventsPipeline{}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UseMemoryQueue {
		return EventsPipeline{Publisher: events.NewMemoryPublisher(), Mode: "memory"}, nil
	}

	var sqsPub *events.SQSPublisher
	if queueURL := strings.TrimSpace(cfg.EventsQueueURL); queueURL != "" {
		if awsCfg == nil {
			return EventsPipeline{}, fmt.Errorf("bootstrap: sqs events need aws config")
		}
		sqsPub = events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), queueURL)
	}

	switch {
	case pool != nil:
		store := events.NewOutboxStore(pool)
		p := EventsPipeline{Publisher: events.NewOutboxPublisher(store), Mode: "outbox"}
		if sqsPub != nil {
			p.Deliverer = events.NewDeliverer(store, sqsPub, logger)
		} else {
			logger.Warn("events queue not configured; outbox entries stay pending")
		}
		return p, nil
	case sqsPub != nil:
		return EventsPipeline{Publisher: sqsPub, Mode: "sqs"}, nil
	default:
		return EventsPipeline{Publisher: events.NopPublisher{}, Mode: "none"}, nil
	}
}

// BuildNotifier selects the email provider for doctor notifications.
func BuildNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *notify.Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewService(nil, time.UTC, logger)
	}
	loc := ClinicLocation(cfg, logger)

	var sender notify.EmailSender
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "ses":
		if awsCfg == nil || strings.TrimSpace(cfg.SESFromEmail) == "" {
			logger.Warn("ses email selected but not configured; notifications disabled")
			break
		}
		sender = notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			sender = s
		} else {
			logger.Warn("sendgrid email selected but api key missing; notifications disabled")
		}
	case "stub", "log":
		sender = notify.NewStubEmailSender(logger)
	}
	return notify.NewService(sender, loc, logger)
}
