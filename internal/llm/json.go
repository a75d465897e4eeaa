package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a completion contains no JSON object.
var ErrNoJSON = errors.New("llm: no json object in response")

// DecodeJSON extracts the first JSON object from a completion, tolerating
// markdown code fences and surrounding prose, and decodes it into v.
func DecodeJSON(text string, v any) error {
	body := stripFences(text)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), v); err != nil {
		return fmt.Errorf("llm: decode json: %w", err)
	}
	return nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
