package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medisync/internal/observability/metrics"
)

var tracer = otel.Tracer("medisync.internal.llm")

// InstrumentedClient bounds each call with a timeout and records latency
// under a collaborator name.
type InstrumentedClient struct {
	inner   Client
	name    string
	timeout time.Duration
	metrics *metrics.CollaboratorMetrics
}

var _ Client = (*InstrumentedClient)(nil)

// Instrument wraps inner. A zero timeout leaves the caller's deadline alone.
func Instrument(inner Client, name string, timeout time.Duration, m *metrics.CollaboratorMetrics) *InstrumentedClient {
	if inner == nil {
		panic("llm: client required")
	}
	return &InstrumentedClient{inner: inner, name: name, timeout: timeout, metrics: m}
}

func (c *InstrumentedClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.collaborator", c.name),
		attribute.Int("llm.messages", len(req.Messages)),
	))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	c.metrics.Observe(c.name, time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return Response{}, err
	}
	span.SetAttributes(
		attribute.Int("llm.input_tokens", int(resp.Usage.InputTokens)),
		attribute.Int("llm.output_tokens", int(resp.Usage.OutputTokens)),
	)
	return resp, nil
}
