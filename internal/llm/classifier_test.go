package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClassifier_NoKey(t *testing.T) {
	c := NewClassifier("", "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := c.Classify(ctx, "hi"); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestClassifier_RequestShapeAndParse(t *testing.T) {
	var req struct {
		Model          string  `json:"model"`
		Temperature    float64 `json:"temperature"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion(`{"label":"Scam","rationale":"Asks for gift cards."}`)))
	}))
	defer srv.Close()

	c := NewClassifier("sk-test", srv.URL+"/v1", "")
	label, rationale, err := c.Classify(context.Background(), "buy me gift cards")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "Scam" || rationale != "Asks for gift cards." {
		t.Fatalf("unexpected classification %q %q", label, rationale)
	}
	if req.Model != "gpt-4o-mini" || req.ResponseFormat.Type != "json_object" {
		t.Errorf("unexpected request model=%q format=%q", req.Model, req.ResponseFormat.Type)
	}
	if req.Temperature < 0.19 || req.Temperature > 0.21 {
		t.Errorf("expected temperature 0.2, got %v", req.Temperature)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "buy me gift cards" {
		t.Errorf("unexpected messages %+v", req.Messages)
	}
}

func TestClassifier_FallbacksOnOddReplies(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantLabel string
	}{
		{"not json", completion("I think it is fine"), "Suspicious"},
		{"missing label", completion(`{"rationale":"hmm"}`), "Suspicious"},
		{"empty choices", `{"choices":[]}`, "Suspicious"},
		{"lowercase label kept", completion(`{"label":"safe","rationale":"ok"}`), "safe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			c := NewClassifier("sk-test", srv.URL+"/v1", "")
			label, rationale, err := c.Classify(context.Background(), "hi")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if label != tc.wantLabel || rationale == "" {
				t.Fatalf("got %q %q", label, rationale)
			}
		})
	}
}

func TestClassifier_HTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()
	c := NewClassifier("sk-test", srv.URL+"/v1", "")
	if _, _, err := c.Classify(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestParseClassification_Defaults(t *testing.T) {
	label, rationale := ParseClassification("{}")
	if label != "Suspicious" || rationale != "Uncertain, needs review." {
		t.Fatalf("unexpected defaults %q %q", label, rationale)
	}
}
