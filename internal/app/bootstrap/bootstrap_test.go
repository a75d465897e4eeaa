package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/internal/events"
	"github.com/wolfman30/medisync/internal/llm"
	"github.com/wolfman30/medisync/pkg/logging"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client without an address")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	if client == nil {
		t.Fatalf("expected client for a live redis")
	}
	_ = client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestClinicLocation(t *testing.T) {
	if loc := ClinicLocation(&appconfig.Config{ClinicTimezone: "Asia/Kolkata"}, logging.Discard()); loc.String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %s", loc)
	}
	if loc := ClinicLocation(&appconfig.Config{ClinicTimezone: "Mars/Olympus"}, logging.Discard()); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", loc)
	}
}

func TestBuildAuditServiceWithoutDSN(t *testing.T) {
	audit, closeFn, err := BuildAuditService(context.Background(), &appconfig.Config{}, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if audit != nil {
		t.Fatalf("expected nil audit service without a DSN")
	}
}

func TestBuildRecordStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := BuildRecordStore(ctx, &appconfig.Config{StoreBackend: "memory"}, StoreDeps{Location: time.UTC}, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if store == nil {
		t.Fatalf("expected store")
	}

	if _, _, err := BuildRecordStore(ctx, &appconfig.Config{StoreBackend: "postgres"}, StoreDeps{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for postgres without a pool")
	}
	if _, _, err := BuildRecordStore(ctx, &appconfig.Config{StoreBackend: "dynamodb"}, StoreDeps{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for dynamodb without aws config")
	}
	if _, _, err := BuildRecordStore(ctx, &appconfig.Config{StoreBackend: "sqlite"}, StoreDeps{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for an unknown backend")
	}

	awsCfg := aws.Config{Region: "us-east-1"}
	cfg := &appconfig.Config{StoreBackend: "dynamodb", PatientsTable: "p", AppointmentsTable: "a"}
	if _, _, err := BuildRecordStore(ctx, cfg, StoreDeps{AWS: &awsCfg}, logging.Discard()); err != nil {
		t.Fatalf("unexpected dynamodb error: %v", err)
	}
}

func TestBuildCollaboratorsWithoutProvider(t *testing.T) {
	if _, err := BuildCollaborators(context.Background(), nil, nil, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for nil config")
	}

	c, err := BuildCollaborators(context.Background(), &appconfig.Config{}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	_, err = c.Extraction.Complete(context.Background(), llm.UserPrompt("", "hi"))
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBuildCollaboratorsRejectsUnknownProvider(t *testing.T) {
	if _, err := BuildCollaborators(context.Background(), &appconfig.Config{LLMProvider: "oracle"}, nil, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for an unknown provider")
	}
}

func TestBuildCollaboratorsBedrock(t *testing.T) {
	awsCfg := aws.Config{Region: "us-east-1"}
	cfg := &appconfig.Config{LLMProvider: "bedrock", BedrockModelID: "anthropic.model", GeminiAPIKey: "ignored"}

	c, err := BuildCollaborators(context.Background(), cfg, &awsCfg, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()
	if len(c.closers) != 0 {
		t.Fatalf("gemini should not be opened when bedrock is forced")
	}
}

func TestBuildEvents(t *testing.T) {
	p, err := BuildEvents(&appconfig.Config{UseMemoryQueue: true}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.Publisher.(*events.MemoryPublisher); !ok {
		t.Fatalf("expected memory publisher, got %T", p.Publisher)
	}

	p, err = BuildEvents(&appconfig.Config{}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Mode != "none" || p.Deliverer != nil {
		t.Fatalf("expected no-op events, got %s", p.Mode)
	}

	if _, err := BuildEvents(&appconfig.Config{EventsQueueURL: "http://localhost:4566/queue/events"}, nil, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for sqs without aws config")
	}

	awsCfg := aws.Config{Region: "us-east-1"}
	p, err = BuildEvents(&appconfig.Config{EventsQueueURL: "http://localhost:4566/queue/events"}, &awsCfg, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.Publisher.(*events.SQSPublisher); !ok {
		t.Fatalf("expected sqs publisher, got %T", p.Publisher)
	}
}

func TestBuildNotifierWithoutProvider(t *testing.T) {
	if svc := BuildNotifier(&appconfig.Config{EmailProvider: "sendgrid"}, nil, logging.Discard()); svc == nil {
		t.Fatalf("expected a service even when email is disabled")
	}
}
