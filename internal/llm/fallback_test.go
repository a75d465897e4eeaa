package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/pkg/logging"
)

type stubClient struct {
	text  string
	err   error
	calls int
	wait  time.Duration
}

func (s *stubClient) Complete(ctx context.Context, _ Request) (Response, error) {
	s.calls++
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Response{}, s.err
	}
	return Response{Text: s.text}, nil
}

func TestFallbackClient(t *testing.T) {
	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubClient{text: "primary"}
		fallback := &stubClient{text: "fallback"}
		resp, err := NewFallbackClient(primary, fallback, logging.Discard()).Complete(context.Background(), UserPrompt("", "x"))
		require.NoError(t, err)
		assert.Equal(t, "primary", resp.Text)
		assert.Zero(t, fallback.calls)
	})
	t.Run("fallback used", func(t *testing.T) {
		primary := &stubClient{err: errors.New("down")}
		fallback := &stubClient{text: "fallback"}
		resp, err := NewFallbackClient(primary, fallback, logging.Discard()).Complete(context.Background(), UserPrompt("", "x"))
		require.NoError(t, err)
		assert.Equal(t, "fallback", resp.Text)
	})
	t.Run("both fail", func(t *testing.T) {
		last := errors.New("also down")
		c := NewFallbackClient(&stubClient{err: errors.New("down")}, &stubClient{err: last}, logging.Discard())
		_, err := c.Complete(context.Background(), UserPrompt("", "x"))
		require.ErrorIs(t, err, last)
	})
	t.Run("no fallback", func(t *testing.T) {
		down := errors.New("down")
		_, err := NewFallbackClient(&stubClient{err: down}, nil, nil).Complete(context.Background(), UserPrompt("", "x"))
		require.ErrorIs(t, err, down)
	})
}

func TestInstrumentedClient_Timeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCollaboratorMetrics(reg)
	slow := &stubClient{text: "late", wait: time.Second}

	_, err := Instrument(slow, "extraction", 20*time.Millisecond, m).Complete(context.Background(), UserPrompt("", "x"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	families, err := reg.Gather()
	require.NoError(t, err)
	var failures float64
	for _, fam := range families {
		if fam.GetName() != "medisync_collaborator_calls_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == "error" {
					failures += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(1), failures)
}

func TestInstrumentedClient_NilMetrics(t *testing.T) {
	resp, err := Instrument(&stubClient{text: "ok"}, "summary", 0, nil).Complete(context.Background(), UserPrompt("", "x"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestStubClientAlwaysFails(t *testing.T) {
	_, err := StubClient{}.Complete(context.Background(), UserPrompt("", "hello"))
	assert.ErrorIs(t, err, ErrNotConfigured)

	fb := NewFallbackClient(StubClient{}, &stubClient{text: "ok"}, logging.Discard())
	resp, err := fb.Complete(context.Background(), UserPrompt("", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}
