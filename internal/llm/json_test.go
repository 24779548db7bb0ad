package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "bare array",
			input: `[1, 2, 3]`,
			want:  `[1, 2, 3]`,
		},
		{
			name:  "json code fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "plain code fence",
			input: "```\n[\"x\"]\n```",
			want:  `["x"]`,
		},
		{
			name:  "prose around the value",
			input: "Here are the exercises:\n{\"a\": 1}\nLet me know if you need more.",
			want:  `{"a": 1}`,
		},
		{
			name:  "only the first top-level value",
			input: `{"first": true} {"second": true}`,
			want:  `{"first": true}`,
		},
		{
			name:  "nested braces stay intact",
			input: `{"outer": {"inner": [1, {"deep": "}"}]}}`,
			want:  `{"outer": {"inner": [1, {"deep": "}"}]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestExtractJSON_NoValue(t *testing.T) {
	for _, input := range []string{"", "no json here", "```\nstill nothing\n```"} {
		_, err := ExtractJSON(input)
		assert.ErrorIs(t, err, ErrNoJSON, "input %q", input)
	}
}
