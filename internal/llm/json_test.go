package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"name":"Rohan"}`, "Rohan"},
		{"fenced", "```json\n{\"name\":\"Rohan\"}\n```", "Rohan"},
		{"bare fence", "```\n{\"name\":\"Asha\"}\n```", "Asha"},
		{"prose around", "Here you go: {\"name\":\"Asha\"} hope that helps", "Asha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			require.NoError(t, DecodeJSON(tt.in, &p))
			assert.Equal(t, tt.want, p.Name)
		})
	}
}

func TestDecodeJSON_Errors(t *testing.T) {
	var v map[string]any
	require.ErrorIs(t, DecodeJSON("no object here", &v), ErrNoJSON)
	require.Error(t, DecodeJSON("{not json}", &v))
}
