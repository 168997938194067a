package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesize_Defaults(t *testing.T) {
	var gotPath, gotLatency, gotKey string
	var body synthesisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLatency = r.URL.Query().Get("optimize_streaming_latency")
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	c := NewElevenLabsClient("xi-test")
	c.BaseURL = srv.URL
	audio, err := c.Synthesize(context.Background(), "Hang up now.", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "ID3mp3" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if gotPath != "/v1/text-to-speech/"+DefaultVoiceID || gotLatency != "2" || gotKey != "xi-test" {
		t.Errorf("unexpected request path=%q latency=%q key=%q", gotPath, gotLatency, gotKey)
	}
	if body.ModelID != DefaultModelID || body.Text != "Hang up now." {
		t.Errorf("unexpected body %+v", body)
	}
	if body.VoiceSettings.Style != 0.2 || !body.VoiceSettings.UseSpeakerBoost {
		t.Errorf("unexpected voice settings %+v", body.VoiceSettings)
	}
}

func TestSynthesize_CustomVoice(t *testing.T) {
	var gotPath string
	var body synthesisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	c := NewElevenLabsClient("xi-test")
	c.BaseURL = srv.URL
	if _, err := c.Synthesize(context.Background(), "hi", "voice42", "eleven_flash_v2_5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/text-to-speech/voice42" || body.ModelID != "eleven_flash_v2_5" {
		t.Fatalf("unexpected path=%q model=%q", gotPath, body.ModelID)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	c := NewElevenLabsClient("")
	if _, err := c.Synthesize(context.Background(), "hi", "", ""); err == nil {
		t.Fatalf("expected error without key")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"bad key"}`))
	}))
	defer srv.Close()
	c = NewElevenLabsClient("xi-test")
	c.BaseURL = srv.URL
	if _, err := c.Synthesize(context.Background(), "hi", "", ""); err == nil {
		t.Fatalf("expected error on 401")
	}
}
