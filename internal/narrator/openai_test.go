package narrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseStreamLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		want     string
		wantDone bool
	}{
		{"content delta", `data: {"choices":[{"delta":{"content":"The door "}}]}`, "The door ", false},
		{"no space after colon", `data:{"choices":[{"delta":{"content":"creaks"}}]}`, "creaks", false},
		{"done sentinel", "data: [DONE]", "", true},
		{"empty line", "", "", false},
		{"comment line", ": keep-alive", "", false},
		{"role-only delta", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, "", false},
		{"empty choices", `data: {"choices":[]}`, "", false},
		{"garbage payload", "data: not-json", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, done := parseStreamLine(tt.line)
			if got != tt.want || done != tt.wantDone {
				t.Errorf("parseStreamLine(%q) = (%q, %v), want (%q, %v)",
					tt.line, got, done, tt.want, tt.wantDone)
			}
		})
	}
}

func TestOpenAIGenerateStream(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"You step \"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"forward.\"}}]}\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer ts.Close()

	o := NewOpenAI(ts.URL, "test-key", "test-model", 100)

	var chunks []string
	full, err := o.Generate(context.Background(), "system", "user", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if full != "You step forward." {
		t.Errorf("full = %q", full)
	}
	if len(chunks) != 2 {
		t.Errorf("chunks = %v, want 2", chunks)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestOpenAIGenerateErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	o := NewOpenAI(ts.URL, "test-key", "test-model", 100)
	if _, err := o.Generate(context.Background(), "system", "user", nil); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestNewProviderSelection(t *testing.T) {
	if _, err := New(testNarratorConfig("openai", "")); err == nil {
		t.Error("openai without key should fail")
	}
	if gen, err := New(testNarratorConfig("openai", "sk-test")); err != nil || gen == nil {
		t.Errorf("openai with key: gen=%v err=%v", gen, err)
	}
	if gen, err := New(testNarratorConfig("mock", "")); err != nil || gen == nil {
		t.Errorf("mock: gen=%v err=%v", gen, err)
	}
	if _, err := New(testNarratorConfig("crystal-ball", "")); err == nil {
		t.Error("unknown provider should fail")
	}
}
