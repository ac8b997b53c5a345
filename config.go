package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configDir = ".guidebook-writer"

// ConfigOverrides allows overriding embedded defaults with file paths.
type ConfigOverrides struct {
	SettingsPath        *string
	ResearchPromptPath  *string
	ExtractorPromptPath *string
	CuratorPromptPath   *string
	RetryPromptPath     *string
	IntroPromptPath     *string
	ReviewPromptPath    *string
	TemplatePath        *string
}

// Embedded prompt and template assets
//
//go:embed .guidebook-writer/research-instructions.md
var defaultResearchPrompt string

//go:embed .guidebook-writer/extractor-prompt.md
var defaultExtractorPrompt string

//go:embed .guidebook-writer/curator-prompt.md
var defaultCuratorPrompt string

//go:embed .guidebook-writer/curator-retry-prompt.md
var defaultRetryPrompt string

//go:embed .guidebook-writer/intro-prompt.md
var defaultIntroPrompt string

//go:embed .guidebook-writer/review-prompt.md
var defaultReviewPrompt string

//go:embed .guidebook-writer/guide-template.md
var defaultGuideTemplate string

// Quota is a per-category [min,max] route count constraint.
type Quota struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Totals is the global route count constraint across all categories.
// HardMax is an absolute ceiling: exceeding it triggers truncation, never
// a curation retry.
type Totals struct {
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
	HardMax int `yaml:"hard_max"`
}

// Settings represents the YAML configuration structure.
type Settings struct {
	QueueFile        string `yaml:"queue_file"`
	ContentDir       string `yaml:"content_dir"`
	ItemDelaySeconds int    `yaml:"item_delay_seconds"`
	Research         struct {
		BaseURL             string `yaml:"base_url"`
		Model               string `yaml:"model"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
		MaxPollAttempts     int    `yaml:"max_poll_attempts"`
	} `yaml:"research"`
	Generation struct {
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"generation"`
	Validator struct {
		RequestDelayMs    int `yaml:"request_delay_ms"`
		RequestsPerMinute int `yaml:"requests_per_minute"`
	} `yaml:"validator"`
	Quotas map[string]Quota `yaml:"quotas"`
	Totals Totals           `yaml:"totals"`
}

// Config holds settings and overrides.
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig creates a new Config with settings and overrides.
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	if overrides != nil && overrides.SettingsPath != nil {
		settings, err := loadSettingsFrom(*overrides.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		return &Config{Settings: settings, Overrides: overrides}, nil
	}

	if err := ensureConfigExists(); err != nil {
		return nil, fmt.Errorf("ensuring config files exist: %w", err)
	}

	settings, err := loadSettings(getConfigPath("settings.yaml"))
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	return &Config{
		Settings:  settings,
		Overrides: overrides,
	}, nil
}

// GetResearchPrompt returns the research instruction template (from
// override file or embedded).
func (c *Config) GetResearchPrompt() string {
	if c.Overrides != nil && c.Overrides.ResearchPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.ResearchPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultResearchPrompt
}

// GetExtractorPrompt returns the extraction prompt template.
func (c *Config) GetExtractorPrompt() string {
	if c.Overrides != nil && c.Overrides.ExtractorPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.ExtractorPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultExtractorPrompt
}

// GetCuratorPrompt returns the curation prompt template.
func (c *Config) GetCuratorPrompt() string {
	if c.Overrides != nil && c.Overrides.CuratorPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.CuratorPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultCuratorPrompt
}

// GetRetryPrompt returns the stricter curation retry prompt template.
func (c *Config) GetRetryPrompt() string {
	if c.Overrides != nil && c.Overrides.RetryPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.RetryPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultRetryPrompt
}

// GetIntroPrompt returns the introduction-writing prompt template.
func (c *Config) GetIntroPrompt() string {
	if c.Overrides != nil && c.Overrides.IntroPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.IntroPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultIntroPrompt
}

// GetReviewPrompt returns the review-pass prompt template.
func (c *Config) GetReviewPrompt() string {
	if c.Overrides != nil && c.Overrides.ReviewPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.ReviewPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultReviewPrompt
}

// GetGuideTemplate returns the output file template.
func (c *Config) GetGuideTemplate() string {
	if c.Overrides != nil && c.Overrides.TemplatePath != nil {
		if content, err := os.ReadFile(*c.Overrides.TemplatePath); err == nil {
			return string(content)
		}
	}
	return defaultGuideTemplate
}

// loadSettings loads settings from a YAML file, falling back to defaults
// when the file is missing.
func loadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultSettingsValue(), nil
	}

	settings := defaultSettingsValue()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	return settings, nil
}

// loadSettingsFrom loads settings from an explicitly requested path.
// Unlike the default lookup, a missing file is an error here.
func loadSettingsFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := defaultSettingsValue()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	return settings, nil
}

func defaultSettingsValue() *Settings {
	s := &Settings{
		QueueFile:        filepath.Join("scripts", "areas.txt"),
		ContentDir:       "content",
		ItemDelaySeconds: 10,
		Quotas: map[string]Quota{
			CategoryBeginner:     {Min: 3, Max: 10},
			CategoryIntermediate: {Min: 3, Max: 10},
			CategoryHard:         {Min: 2, Max: 8},
			CategoryClassic:      {Min: 8, Max: 12},
			CategoryEpic:         {Min: 2, Max: 8},
			CategoryBoulders:     {Min: 0, Max: 8},
		},
		Totals: Totals{Min: 30, Max: 45, HardMax: 50},
	}
	s.Research.BaseURL = "https://api.exa.ai/research/v1"
	s.Research.Model = "exa-research"
	s.Research.PollIntervalSeconds = 5
	s.Research.MaxPollAttempts = 120
	s.Generation.Model = "claude-sonnet-4-20250514"
	s.Generation.MaxTokens = 4000
	s.Generation.Temperature = 0.2
	s.Validator.RequestDelayMs = 100
	s.Validator.RequestsPerMinute = 30
	return s
}

// getConfigPath returns the path to a config file in the config directory.
func getConfigPath(filename string) string {
	return filepath.Join(configDir, filename)
}

// ensureConfigExists creates the config directory and a default
// settings.yaml on first run.
func ensureConfigExists() error {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		defaultSettings := `queue_file: scripts/areas.txt
content_dir: content
item_delay_seconds: 10
research:
  base_url: https://api.exa.ai/research/v1
  model: exa-research
  poll_interval_seconds: 5
  max_poll_attempts: 120
generation:
  model: claude-sonnet-4-20250514
  max_tokens: 4000
  temperature: 0.2
validator:
  request_delay_ms: 100
  requests_per_minute: 30
quotas:
  beginner: {min: 3, max: 10}
  intermediate: {min: 3, max: 10}
  hard: {min: 2, max: 8}
  classic: {min: 8, max: 12}
  epic: {min: 2, max: 8}
  boulders: {min: 0, max: 8}
totals: {min: 30, max: 45, hard_max: 50}
`
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing default settings: %w", err)
		}
	}

	return nil
}
