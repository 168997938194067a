package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "9BWtsMINqrJLrRacOk9x"
	DefaultModelID = "eleven_turbo_v2_5"
)

// ElevenLabsClient renders short voice alerts to MP3.
type ElevenLabsClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewElevenLabsClient(apiKey string) *ElevenLabsClient {
	return &ElevenLabsClient{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns MP3 bytes for text. Empty voiceID or modelID use the defaults.
func (e *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID, modelID string) ([]byte, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key missing")
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	u, err := url.Parse(strings.TrimRight(e.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	// 0..4, lower trades quality for latency
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	buf, _ := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.4,
			SimilarityBoost: 0.7,
			Style:           0.2,
			UseSpeakerBoost: true,
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
