package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConverse struct {
	response string
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.response}},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(12),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(17),
		},
	}, nil
}

func TestBedrockClient_Complete(t *testing.T) {
	api := &mockConverse{response: "  hello doctor  "}
	c := NewBedrockClient(api, "anthropic.claude-haiku")

	resp, err := c.Complete(context.Background(), Request{
		System:      []string{"be brief"},
		Messages:    []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}, {Role: RoleUser, Content: "again"}},
		MaxTokens:   256,
		Temperature: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello doctor", resp.Text)
	assert.Equal(t, int32(17), resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.StopReason)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.claude-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 1)
	assert.Len(t, api.input.Messages, 3)
	require.NotNil(t, api.input.InferenceConfig)
	assert.Equal(t, int32(256), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
	assert.Equal(t, float32(0), aws.ToFloat32(api.input.InferenceConfig.Temperature))
}

func TestBedrockClient_RequestModelOverrides(t *testing.T) {
	api := &mockConverse{response: "ok"}
	c := NewBedrockClient(api, "default-model")

	_, err := c.Complete(context.Background(), Request{Model: "other-model", Temperature: -1, Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "other-model", aws.ToString(api.input.ModelId))
	assert.Nil(t, api.input.InferenceConfig)
}

func TestBedrockClient_Errors(t *testing.T) {
	t.Run("no messages", func(t *testing.T) {
		c := NewBedrockClient(&mockConverse{}, "m")
		_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "  "}}})
		require.Error(t, err)
	})
	t.Run("unknown role", func(t *testing.T) {
		c := NewBedrockClient(&mockConverse{}, "m")
		_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: "tool", Content: "x"}}})
		require.Error(t, err)
	})
	t.Run("api failure", func(t *testing.T) {
		boom := errors.New("throttled")
		c := NewBedrockClient(&mockConverse{err: boom}, "m")
		_, err := c.Complete(context.Background(), UserPrompt("", "x"))
		require.ErrorIs(t, err, boom)
	})
	t.Run("empty text", func(t *testing.T) {
		c := NewBedrockClient(&mockConverse{response: " "}, "m")
		_, err := c.Complete(context.Background(), UserPrompt("", "x"))
		require.ErrorIs(t, err, ErrEmptyResponse)
	})
	t.Run("missing model", func(t *testing.T) {
		c := NewBedrockClient(&mockConverse{}, "")
		_, err := c.Complete(context.Background(), UserPrompt("", "x"))
		require.Error(t, err)
	})
}
