package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/option"

	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

const (
	BackendMemory    = "memory"
	BackendDynamo    = "dynamodb"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// StoreDeps are the optional collaborators of BuildRecordStore.
type StoreDeps struct {
	AWS      *aws.Config
	Pool     *pgxpool.Pool
	Metrics  *metrics.StoreMetrics
	Location *time.Location
}

// BuildRecordStore selects the persistent backend named by cfg.StoreBackend.
// The returned close func releases backend clients it opened itself.
func BuildRecordStore(ctx context.Context, cfg *appconfig.Config, deps StoreDeps, logger *logging.Logger) (*records.Store, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		backend records.Backend
		closer  = noop
	)
	switch kind := strings.ToLower(strings.TrimSpace(cfg.StoreBackend)); kind {
	case "", BackendMemory:
		backend = records.NewMemoryBackend()
	case BackendDynamo:
		if deps.AWS == nil {
			return nil, noop, fmt.Errorf("bootstrap: dynamodb backend needs aws config")
		}
		backend = records.NewDynamoBackend(dynamodb.NewFromConfig(*deps.AWS), cfg.PatientsTable, cfg.AppointmentsTable, logger)
	case BackendPostgres:
		if deps.Pool == nil {
			return nil, noop, fmt.Errorf("bootstrap: postgres backend needs DATABASE_URL")
		}
		backend = records.NewPostgresBackend(deps.Pool)
	case BackendFirestore:
		fs, closeFn, err := openFirestore(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		backend = records.NewFirestoreBackend(fs, logger)
		closer = closeFn
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown store backend %q", kind)
	}

	opts := []records.StoreOption{records.WithMetrics(deps.Metrics)}
	if deps.Location != nil {
		opts = append(opts, records.WithLocation(deps.Location))
	}
	logger.Info("record store ready", "backend", cfg.StoreBackend)
	return records.NewStore(backend, logger, opts...), closer, nil
}

func openFirestore(ctx context.Context, cfg *appconfig.Config) (*firestore.Client, func(), error) {
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.FirestoreCredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirestoreProjectID}, opts...)
	if err != nil {
		return nil, func() {}, fmt.Errorf("bootstrap: init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, func() {}, fmt.Errorf("bootstrap: open firestore: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}
