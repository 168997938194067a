package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	classifierPrompt = `Classify the user's utterance into one of: Safe, Suspicious, Scam. Return strict JSON {"label":"Safe|Suspicious|Scam","rationale":"..."}. Keep it concise.`

	fallbackLabel     = "Suspicious"
	fallbackRationale = "Uncertain, needs review."
)

// Classifier labels caller utterances with an OpenAI chat model in JSON mode.
type Classifier struct {
	APIKey      string
	Model       string
	Temperature float32
	client      *openai.Client
}

type classification struct {
	Label     string `json:"label"`
	Rationale string `json:"rationale"`
}

// NewClassifier builds a classifier. baseURL may be empty for the public API.
func NewClassifier(apiKey, baseURL, model string) *Classifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Classifier{
		APIKey:      apiKey,
		Model:       model,
		Temperature: 0.2,
		client:      openai.NewClientWithConfig(cfg),
	}
}

// Classify returns one of Safe, Suspicious or Scam with a short rationale.
// A reply that is not the expected JSON falls back to Suspicious.
func (c *Classifier) Classify(ctx context.Context, text string) (label, rationale string, err error) {
	if c.APIKey == "" {
		return "", "", fmt.Errorf("openai api key missing")
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.Model,
		Temperature: c.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("classifier completion: %w", err)
	}
	content := "{}"
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		content = resp.Choices[0].Message.Content
	}
	label, rationale = ParseClassification(content)
	return label, rationale, nil
}

// ParseClassification extracts label and rationale from a model reply,
// substituting defaults for anything missing or unparsable.
func ParseClassification(content string) (label, rationale string) {
	var out classification
	_ = json.Unmarshal([]byte(content), &out)
	label = strings.TrimSpace(out.Label)
	rationale = strings.TrimSpace(out.Rationale)
	if label == "" {
		label = fallbackLabel
	}
	if rationale == "" {
		rationale = fallbackRationale
	}
	return label, rationale
}
