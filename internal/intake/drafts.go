package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medisync/internal/archive"
)

const (
	draftKeyPrefix      = "medisync:intake:draft:"
	transcriptKeyPrefix = "medisync:intake:transcripts:"
	defaultDraftTTL     = 2 * time.Hour
)

// TranscriptEntry is one reconciled capture kept for operator review.
type TranscriptEntry struct {
	ID         string    `json:"id"`
	Transcript string    `json:"transcript"`
	Outcomes   []Outcome `json:"outcomes"`
	At         time.Time `json:"at"`
}

// DraftStore keeps unfinished booking forms and recent transcripts in Redis
// so a desk survives a page reload or an API restart.
type DraftStore struct {
	redis          *redis.Client
	tracer         trace.Tracer
	ttl            time.Duration
	maxTranscripts int64
}

// NewDraftStore returns nil for a nil client; a nil store is a no-op.
func NewDraftStore(redisClient *redis.Client, ttl time.Duration) *DraftStore {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	return &DraftStore{
		redis:          redisClient,
		tracer:         otel.Tracer("medisync.internal.intake.drafts"),
		ttl:            ttl,
		maxTranscripts: 20,
	}
}

func (s *DraftStore) Save(ctx context.Context, deskID string, form AppointmentForm) error {
	if s == nil {
		return nil
	}
	if deskID == "" {
		return errors.New("intake: desk id required")
	}
	ctx, span := s.tracer.Start(ctx, "intake.drafts.save")
	defer span.End()

	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("intake: marshal draft: %w", err)
	}
	if err := s.redis.Set(ctx, draftKeyPrefix+deskID, data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: save draft: %w", err)
	}
	return nil
}

// Load returns the saved draft, or false when none exists.
func (s *DraftStore) Load(ctx context.Context, deskID string) (AppointmentForm, bool, error) {
	if s == nil {
		return AppointmentForm{}, false, nil
	}
	ctx, span := s.tracer.Start(ctx, "intake.drafts.load")
	defer span.End()

	data, err := s.redis.Get(ctx, draftKeyPrefix+deskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return AppointmentForm{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return AppointmentForm{}, false, fmt.Errorf("intake: load draft: %w", err)
	}
	var form AppointmentForm
	if err := json.Unmarshal(data, &form); err != nil {
		return AppointmentForm{}, false, fmt.Errorf("intake: decode draft: %w", err)
	}
	return form, true, nil
}

// Delete drops the draft and transcript log for a desk.
func (s *DraftStore) Delete(ctx context.Context, deskID string) error {
	if s == nil {
		return nil
	}
	if err := s.redis.Del(ctx, draftKeyPrefix+deskID, transcriptKeyPrefix+deskID).Err(); err != nil {
		return fmt.Errorf("intake: delete draft: %w", err)
	}
	return nil
}

// AppendTranscript records a capture. Contact details are scrubbed before
// storage.
func (s *DraftStore) AppendTranscript(ctx context.Context, deskID string, entry TranscriptEntry) error {
	if s == nil {
		return nil
	}
	if deskID == "" {
		return errors.New("intake: desk id required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	entry.Transcript = archive.ScrubPII(entry.Transcript)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("intake: marshal transcript: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "intake.drafts.append_transcript")
	defer span.End()

	key := transcriptKeyPrefix + deskID
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxTranscripts, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: append transcript: %w", err)
	}
	return nil
}

// Transcripts returns up to limit of the most recent entries, oldest first.
// A limit of zero returns everything kept.
func (s *DraftStore) Transcripts(ctx context.Context, deskID string, limit int64) ([]TranscriptEntry, error) {
	if s == nil {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "intake.drafts.transcripts")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, transcriptKeyPrefix+deskID, start, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("intake: list transcripts: %w", err)
	}
	out := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
