package llm

import (
	"context"

	"github.com/wolfman30/medisync/pkg/logging"
)

// FallbackClient retries a failed completion on a secondary provider.
// A nil fallback makes it a pass-through.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

var _ Client = (*FallbackClient)(nil)

func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("llm: primary client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return Response{}, err
	}

	c.logger.Warn("primary llm failed, attempting fallback", "error", err)
	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback llm also failed", "primary_error", err, "fallback_error", fallbackErr)
		return Response{}, fallbackErr
	}
	return resp, nil
}
