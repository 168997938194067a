// Package antispoof scores audio chunks for synthetic speech through the
// Hugging Face inference API.
package antispoof

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "speechbrain/antispoofing-AASIST"
	DefaultTimeout = 1500 * time.Millisecond
)

// ErrUnexpectedResponse is returned when the model replies with something
// other than a list of label scores.
var ErrUnexpectedResponse = errors.New("antispoof: unexpected response shape")

// LabelScore is one entry of an audio-classification reply.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Client posts WAV chunks to an audio-classification model.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	Model      string
	Timeout    time.Duration
}

func NewClient(token, model string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTPClient: &http.Client{},
		BaseURL:    DefaultBaseURL,
		Token:      token,
		Model:      model,
		Timeout:    timeout,
	}
}

// Detect returns the probability in [0,1] that the chunk is synthetic.
// Any error means the detector is unavailable for this chunk.
func (c *Client) Detect(ctx context.Context, wav []byte) (float64, error) {
	if c.Token == "" {
		return 0, fmt.Errorf("antispoof: token missing")
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/models/" + c.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("antispoof request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("antispoof status=%d body=%s", resp.StatusCode, string(b))
	}
	var scores []LabelScore
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return 0, ErrUnexpectedResponse
	}
	return SpoofProbability(scores), nil
}

// SpoofProbability reduces label scores to a single synthetic probability.
// A "spoof" label wins outright; "bona fide" or "genuine" labels count as
// the complement of their score.
func SpoofProbability(scores []LabelScore) float64 {
	p := 0.0
	for _, s := range scores {
		label := strings.ToLower(s.Label)
		if strings.Contains(label, "spoof") {
			p = s.Score
			break
		}
		if strings.Contains(label, "bona") || strings.Contains(label, "genuine") {
			if alt := 1 - s.Score; alt > p {
				p = alt
			}
		}
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
