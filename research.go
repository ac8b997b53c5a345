package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ResearchStatus is the task state as reported by the research service.
// Transitions are owned by the service; the client only observes them.
type ResearchStatus string

const (
	ResearchPending   ResearchStatus = "pending"
	ResearchRunning   ResearchStatus = "running"
	ResearchCompleted ResearchStatus = "completed"
	ResearchCanceled  ResearchStatus = "canceled"
	ResearchFailed    ResearchStatus = "failed"
)

// ResearchTask is the creation response from the research service.
type ResearchTask struct {
	ResearchID   string         `json:"researchId"`
	Status       ResearchStatus `json:"status"`
	Model        string         `json:"model"`
	Instructions string         `json:"instructions"`
}

// ResearchResult is the polling response from the research service.
type ResearchResult struct {
	ResearchID  string          `json:"researchId"`
	Status      ResearchStatus  `json:"status"`
	Output      *ResearchOutput `json:"output,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
	CompletedAt int64           `json:"completedAt,omitempty"`
}

// ResearchOutput is the loosely-shaped output payload: either plain text or
// an object with one of several known text-bearing fields.
type ResearchOutput struct {
	Text   string
	Object map[string]any
}

// outputTextFields is the ordered list of object fields probed for text.
var outputTextFields = []string{"markdown", "text", "content", "result"}

func (o *ResearchOutput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Text = s
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil {
		o.Object = m
		return nil
	}
	// Scalar or array payload: keep the raw JSON as text.
	o.Text = strings.TrimSpace(string(data))
	return nil
}

// Content extracts the best-effort text from the payload. It never returns
// empty output for a non-empty payload: when no known field matches, the
// whole object is serialized as a fallback.
func (o *ResearchOutput) Content() string {
	if o.Text != "" {
		return o.Text
	}
	for _, field := range outputTextFields {
		value, ok := o.Object[field]
		if !ok {
			continue
		}
		if s, ok := value.(string); ok {
			if s != "" {
				return s
			}
			continue
		}
		serialized, err := json.MarshalIndent(value, "", "  ")
		if err == nil {
			return string(serialized)
		}
	}

	// Any other string field carries the text. Keys are sorted so the
	// choice is stable when several match.
	keys := make([]string, 0, len(o.Object))
	for key := range o.Object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if s, ok := o.Object[key].(string); ok && s != "" {
			return s
		}
	}

	serialized, err := json.MarshalIndent(o.Object, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", o.Object)
	}
	log.Printf("⚠ Warning: research output has unknown structure, using full payload")
	return string(serialized)
}

// ResearchClient creates asynchronous research tasks and polls them to
// completion or timeout.
type ResearchClient struct {
	baseURL      string
	apiKey       string
	model        string
	instructions string
	pollInterval time.Duration
	maxAttempts  int
	client       *http.Client
}

// NewResearchClient builds a client from settings. The instruction template
// must contain the {{.Area}} variable.
func NewResearchClient(config *Config, apiKey string) (*ResearchClient, error) {
	instructions := config.GetResearchPrompt()
	if !strings.Contains(instructions, "{{.Area}}") {
		return nil, fmt.Errorf("research instruction template must contain {{.Area}} variable")
	}

	return &ResearchClient{
		baseURL:      config.Settings.Research.BaseURL,
		apiKey:       apiKey,
		model:        config.Settings.Research.Model,
		instructions: instructions,
		pollInterval: time.Duration(config.Settings.Research.PollIntervalSeconds) * time.Second,
		maxAttempts:  config.Settings.Research.MaxPollAttempts,
		client:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Research runs the full task lifecycle for one area and returns the
// extracted research text.
func (rc *ResearchClient) Research(area string) (string, error) {
	id, err := rc.createTask(area)
	if err != nil {
		return "", err
	}

	result, err := rc.awaitTask(id)
	if err != nil {
		return "", err
	}

	if result.Output == nil {
		return "", fmt.Errorf("research task %s completed but no output found", id)
	}
	return result.Output.Content(), nil
}

// createTask submits the research instructions and returns the task ID.
func (rc *ResearchClient) createTask(area string) (string, error) {
	instructions := strings.ReplaceAll(rc.instructions, "{{.Area}}", area)
	debugf("research instructions for %q: %d bytes", area, len(instructions))

	payload, err := json.Marshal(map[string]string{
		"instructions": instructions,
		"model":        rc.model,
	})
	if err != nil {
		return "", fmt.Errorf("encoding research request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, rc.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building research request: %w", err)
	}
	req.Header.Set("x-api-key", rc.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := rc.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating research task: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("creating research task: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var task ResearchTask
	if err := json.Unmarshal(body, &task); err != nil {
		return "", fmt.Errorf("decoding research task: %w", err)
	}
	if task.ResearchID == "" {
		return "", fmt.Errorf("research service returned no task ID")
	}

	log.Printf("✓ Created research task: %s", task.ResearchID)
	return task.ResearchID, nil
}

// awaitTask polls the task on a fixed interval until a terminal status or
// the attempt budget is exhausted.
func (rc *ResearchClient) awaitTask(id string) (*ResearchResult, error) {
	for attempt := 0; attempt < rc.maxAttempts; attempt++ {
		result, err := rc.pollTask(id)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case ResearchCompleted:
			log.Printf("✓ Research completed after %s", time.Duration(attempt+1)*rc.pollInterval)
			return result, nil
		case ResearchFailed, ResearchCanceled:
			return nil, fmt.Errorf("research task %s: %s", result.Status, id)
		}

		if attempt < rc.maxAttempts-1 {
			log.Printf("  ⏳ Research in progress... (%d/%d)", attempt+1, rc.maxAttempts)
			time.Sleep(rc.pollInterval)
		}
	}

	return nil, fmt.Errorf("research task timed out after %s: %s",
		time.Duration(rc.maxAttempts)*rc.pollInterval, id)
}

func (rc *ResearchClient) pollTask(id string) (*ResearchResult, error) {
	req, err := http.NewRequest(http.MethodGet, rc.baseURL+"/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}
	req.Header.Set("x-api-key", rc.apiKey)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling research task %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("polling research task %s: HTTP %d: %s", id, resp.StatusCode, string(body))
	}

	var result ResearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding research result: %w", err)
	}
	return &result, nil
}
