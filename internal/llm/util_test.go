package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"totalScore": 80}`,
			expected: `{"totalScore": 80}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"totalScore\": 80}\n```",
			expected: `{"totalScore": 80}`,
		},
		{
			name:     "bare fence",
			input:    "```\n{\"totalScore\": 80}\n```",
			expected: `{"totalScore": 80}`,
		},
		{
			name:     "fence with JSON on first line",
			input:    "```{\"totalScore\": 80}\n```",
			expected: `{"totalScore": 80}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n```json\n{}\n```  \n",
			expected: `{}`,
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"embedded", `Here you go: {"a": {"b": 1}} hope that helps`, `{"a": {"b": 1}}`},
		{"no object", "I cannot score this resume.", ""},
		{"reversed braces", "} nothing {", ""},
		{"only object", `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONObject(tt.input))
		})
	}
}
