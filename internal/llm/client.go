// Package llm is the shared completion client behind the extraction,
// generation and summary collaborators.
package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a provider-neutral completion request. A negative Temperature
// leaves the provider default.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

// Client completes a chat request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// UserPrompt builds a single-turn request.
func UserPrompt(system, prompt string) Request {
	req := Request{Messages: []Message{{Role: RoleUser, Content: prompt}}}
	if system != "" {
		req.System = []string{system}
	}
	return req
}

// ErrNotConfigured is returned by StubClient.
var ErrNotConfigured = errors.New("llm: no provider configured")

// StubClient stands in when no provider is configured. Every completion
// fails, so callers report their collaborator as unavailable.
type StubClient struct{}

var _ Client = StubClient{}

func (StubClient) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}
