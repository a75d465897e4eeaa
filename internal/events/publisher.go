package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Publisher emits canonical events to a downstream transport.
type Publisher interface {
	Publish(ctx context.Context, aggregate string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error)
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends envelopes to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

var (
	_ Publisher       = (*SQSPublisher)(nil)
	_ DeliveryHandler = (*SQSPublisher)(nil)
)

func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, aggregate string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error) {
	env, err := NewEnvelope(aggregate, evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	if err := p.send(ctx, env.EventType, string(body)); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Handle forwards an outbox entry whose payload is an encoded envelope.
func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	return p.send(ctx, entry.Type, string(entry.Payload))
}

func (p *SQSPublisher) send(ctx context.Context, eventType, body string) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: send sqs message: %w", err)
	}
	return nil
}

// MemoryPublisher keeps envelopes in memory. Used for local runs and tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Envelope
}

var _ Publisher = (*MemoryPublisher)(nil)

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, aggregate string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error) {
	env, err := NewEnvelope(aggregate, evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	p.mu.Lock()
	p.events = append(p.events, env)
	p.mu.Unlock()
	return env, nil
}

// Events returns a snapshot of published envelopes.
func (p *MemoryPublisher) Events() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.events...)
}

// OfType returns the envelopes with the given event type.
func (p *MemoryPublisher) OfType(eventType string) []Envelope {
	var out []Envelope
	for _, env := range p.Events() {
		if env.EventType == eventType {
			out = append(out, env)
		}
	}
	return out
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, aggregate string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error) {
	return NewEnvelope(aggregate, evt, opts...)
}
