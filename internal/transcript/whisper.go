package transcript

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// chunkFileName is the multipart file name Whisper uses to infer the container.
const chunkFileName = "chunk.wav"

// WhisperClient transcribes one WAV chunk at a time through the OpenAI audio API.
type WhisperClient struct {
	APIKey string
	Model  string
	client *openai.Client
}

// NewWhisperClient builds a client. baseURL may be empty for the public API.
func NewWhisperClient(apiKey, baseURL, model string) *WhisperClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperClient{APIKey: apiKey, Model: model, client: openai.NewClientWithConfig(cfg)}
}

// Transcribe returns the recognised text of a WAV chunk. Silence yields "".
func (w *WhisperClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if w.APIKey == "" {
		return "", fmt.Errorf("whisper api key missing")
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.Model,
		FilePath: chunkFileName,
		Reader:   bytes.NewReader(wav),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
