package main

import (
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// Generator is the single text-completion call every generation-service
// consumer depends on: a prompt in, generated text out.
type Generator interface {
	Complete(prompt string, maxTokens int) (string, error)
}

// AnthropicGenerator backs Generator with the Anthropic API.
type AnthropicGenerator struct {
	apiKey      string
	model       string
	temperature float64
}

// NewAnthropicGenerator creates a generator using the configured model.
func NewAnthropicGenerator(config *Config, apiKey string) *AnthropicGenerator {
	return &AnthropicGenerator{
		apiKey:      apiKey,
		model:       config.Settings.Generation.Model,
		temperature: config.Settings.Generation.Temperature,
	}
}

// Complete sends the prompt and returns the generated text.
func (g *AnthropicGenerator) Complete(prompt string, maxTokens int) (string, error) {
	settings := types.RequestSettings{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: g.temperature,
	}

	response, err := anthropic.PromptWithSettings("", prompt, "", g.apiKey, settings)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in generation response")
	}
	return response.Content[0].Text, nil
}

// stripCodeFence removes an optional code fence wrapping a structured
// payload returned as free text. Any language tag on the opening fence
// is dropped with the fence line.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
