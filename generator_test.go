package main

import (
	"fmt"
	"testing"
)

// mockGenerator replays canned responses and records the prompts it saw.
type mockGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (m *mockGenerator) Complete(prompt string, maxTokens int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("mock generator has no response for call %d", len(m.prompts))
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"markdown fence", "```markdown\n# Title\n\nBody text.\n```", "# Title\n\nBody text."},
		{"unknown tag", "```mdx\n# Title\n```", "# Title"},
		{"surrounding whitespace", "  ```json\n[1, 2]\n```  ", "[1, 2]"},
		{"inner fence preserved", "```markdown\nUse ```go``` blocks.\n```", "Use ```go``` blocks."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.input); got != tt.expected {
				t.Errorf("stripCodeFence() = %q, want %q", got, tt.expected)
			}
		})
	}
}
