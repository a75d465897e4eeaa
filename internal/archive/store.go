package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/wolfman30/medisync/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ErrNotFound is returned by Load for a missing key.
var ErrNotFound = errors.New("archive: object not found")

// Store keeps an immutable copy of every committed prescription in S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchivePrescription writes the record as JSON and appends it to the
// monthly manifest. It returns the object key, or "" when disabled.
func (s *Store) ArchivePrescription(ctx context.Context, record PrescriptionRecord) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}

	at := record.CommittedAt.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	key := fmt.Sprintf("prescriptions/v1/by-patient/%s/%s-%s.json",
		record.PatientID, at.Format("20060102T150405Z"), uuid.NewString()[:8])

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived prescription to S3", "patient_id", record.PatientID, "s3_key", key)

	entry := ManifestEntry{
		PatientID:       record.PatientID,
		S3Key:           key,
		DoctorID:        record.DoctorID,
		MedicationCount: len(record.Suggestion.Medications),
		Promoted:        record.PromotedFrom != "",
		CommittedAt:     at.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, at, entry); err != nil {
		// the record itself is stored
		s.logger.Warn("failed to append manifest", "error", err, "patient_id", record.PatientID)
	}
	return key, nil
}

// Load reads an archived record back.
func (s *Store) Load(ctx context.Context, key string) (PrescriptionRecord, error) {
	if !s.Enabled() {
		return PrescriptionRecord{}, ErrNotFound
	}
	body, err := s.get(ctx, key)
	if err != nil {
		return PrescriptionRecord{}, err
	}
	var record PrescriptionRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return PrescriptionRecord{}, fmt.Errorf("archive: decode %s: %w", key, err)
	}
	return record, nil
}

// AppendManifest appends a JSONL line to the manifest for the month of at.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	manifestKey := fmt.Sprintf("prescriptions/v1/manifests/%d-%02d.jsonl", at.Year(), at.Month())

	existing, err := s.get(ctx, manifestKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}
