package usecase

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/twilio/twilio-go/twiml"

	"github.com/sulisumenpeter/shield-voice-aware/internal/auth"
)

// MediaStreamPath is the websocket route Twilio connects back to.
const MediaStreamPath = "/twilio-media"

// StreamService issues signed media stream URLs for incoming calls.
type StreamService struct {
	secret        string
	publicBaseURL string
	now           func() time.Time
}

func NewStreamService(secret, publicBaseURL string) *StreamService {
	return &StreamService{
		secret:        secret,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// BuildAbsoluteURL builds a public absolute URL for path.
// Priority: configured base URL > X-Forwarded-* headers > request Host heuristic.
func (s *StreamService) BuildAbsoluteURL(r *http.Request, path string) string {
	baseURL := s.publicBaseURL
	if baseURL == "" {
		proto := r.Header.Get("X-Forwarded-Proto")
		host := r.Header.Get("X-Forwarded-Host")
		if proto != "" && host != "" {
			baseURL = fmt.Sprintf("%s://%s", proto, host)
		}
	}
	if baseURL == "" {
		host := r.Host
		proto := "https"
		if strings.HasPrefix(host, "localhost:") || strings.HasPrefix(host, "127.0.0.1:") {
			proto = "http"
		}
		baseURL = fmt.Sprintf("%s://%s", proto, host)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return baseURL + path
}

// StreamURL returns the websocket URL with a freshly signed token for one call.
func (s *StreamService) StreamURL(r *http.Request, userID, callID, lang string) string {
	abs := s.BuildAbsoluteURL(r, MediaStreamPath)
	switch {
	case strings.HasPrefix(abs, "https://"):
		abs = "wss://" + strings.TrimPrefix(abs, "https://")
	case strings.HasPrefix(abs, "http://"):
		abs = "ws://" + strings.TrimPrefix(abs, "http://")
	}

	ts := s.now().UnixMilli()
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("call_id", callID)
	if lang != "" {
		q.Set("lang", lang)
	}
	q.Set("ts", strconv.FormatInt(ts, 10))
	q.Set("token", auth.Sign(s.secret, userID, callID, ts))
	return abs + "?" + q.Encode()
}

// ConnectTwiML answers a voice webhook by forking the call audio to streamURL.
func ConnectTwiML(streamURL string) (string, error) {
	stream := &twiml.VoiceStream{Url: streamURL}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	return twiml.Voice([]twiml.Element{connect})
}
