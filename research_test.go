package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testResearchClient(baseURL string, maxAttempts int) *ResearchClient {
	return &ResearchClient{
		baseURL:      baseURL,
		apiKey:       "test-key",
		model:        "exa-research",
		instructions: "Research the climbing area \"{{.Area}}\".",
		pollInterval: 0,
		maxAttempts:  maxAttempts,
		client:       http.DefaultClient,
	}
}

func TestResearchCompletes(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if r.Header.Get("x-api-key") != "test-key" {
				t.Errorf("missing x-api-key header")
			}
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if !strings.Contains(req["instructions"], "Rock Canyon") {
				t.Errorf("instructions missing area name: %q", req["instructions"])
			}
			json.NewEncoder(w).Encode(map[string]string{"researchId": "r-1", "status": "pending"})
			return
		}

		polls++
		status := "running"
		if polls >= 3 {
			status = "completed"
		}
		resp := map[string]any{"researchId": "r-1", "status": status}
		if status == "completed" {
			resp["output"] = "# Rock Canyon\n\nRoute facts here."
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	rc := testResearchClient(server.URL, 10)
	text, err := rc.Research("Rock Canyon")
	if err != nil {
		t.Fatalf("Research() error = %v", err)
	}
	if !strings.Contains(text, "Route facts here.") {
		t.Errorf("Research() = %q, want research text", text)
	}
	if polls != 3 {
		t.Errorf("polled %d times, want 3", polls)
	}
}

func TestResearchTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"researchId": "r-2", "status": "pending"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"researchId": "r-2", "status": "running"})
	}))
	defer server.Close()

	rc := testResearchClient(server.URL, 5)
	_, err := rc.Research("Rock Canyon")
	if err == nil {
		t.Fatal("Research() should time out when the task never completes")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout error", err)
	}
}

func TestResearchTerminalStatuses(t *testing.T) {
	for _, status := range []string{"failed", "canceled"} {
		t.Run(status, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					json.NewEncoder(w).Encode(map[string]string{"researchId": "r-3", "status": "pending"})
					return
				}
				json.NewEncoder(w).Encode(map[string]string{"researchId": "r-3", "status": status})
			}))
			defer server.Close()

			rc := testResearchClient(server.URL, 5)
			_, err := rc.Research("Rock Canyon")
			if err == nil {
				t.Fatalf("Research() should fail for status %q", status)
			}
			if !strings.Contains(err.Error(), status) {
				t.Errorf("error = %v, want mention of %q", err, status)
			}
		})
	}
}

func TestResearchCreateErrorCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "invalid api key")
	}))
	defer server.Close()

	rc := testResearchClient(server.URL, 5)
	_, err := rc.Research("Rock Canyon")
	if err == nil {
		t.Fatal("Research() should fail on non-2xx create response")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v, want response body as diagnostic text", err)
	}
}

func TestResearchOutputContent(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected string
	}{
		{"plain string", `"raw text output"`, "raw text output"},
		{"markdown field", `{"markdown": "md content", "text": "other"}`, "md content"},
		{"text field", `{"text": "text content"}`, "text content"},
		{"content field", `{"content": "body content"}`, "body content"},
		{"result string field", `{"result": "result content"}`, "result content"},
		{"probe order", `{"text": "second", "markdown": "first"}`, "first"},
		{"empty field skipped", `{"markdown": "", "text": "fallback"}`, "fallback"},
		{"any string field", `{"report": "the research text"}`, "the research text"},
		{"known field beats unknown", `{"report": "other", "content": "body content"}`, "body content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output ResearchOutput
			if err := json.Unmarshal([]byte(tt.payload), &output); err != nil {
				t.Fatalf("unmarshal error = %v", err)
			}
			if got := output.Content(); got != tt.expected {
				t.Errorf("Content() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestResearchOutputFallbackSerialization(t *testing.T) {
	var output ResearchOutput
	if err := json.Unmarshal([]byte(`{"unknown": {"nested": true}}`), &output); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}

	content := output.Content()
	if content == "" {
		t.Fatal("Content() must never be empty for a non-empty payload")
	}
	if !strings.Contains(content, "nested") {
		t.Errorf("Content() = %q, want full payload serialization", content)
	}
}

func TestResearchOutputResultObject(t *testing.T) {
	var output ResearchOutput
	if err := json.Unmarshal([]byte(`{"result": {"routes": 12}}`), &output); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}

	content := output.Content()
	if !strings.Contains(content, "routes") {
		t.Errorf("Content() = %q, want serialized result object", content)
	}
}
