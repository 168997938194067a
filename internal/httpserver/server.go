package httpserver

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sulisumenpeter/shield-voice-aware/internal/agent"
	"github.com/sulisumenpeter/shield-voice-aware/internal/auth"
	"github.com/sulisumenpeter/shield-voice-aware/internal/logging"
	"github.com/sulisumenpeter/shield-voice-aware/internal/mediastream"
	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
	"github.com/sulisumenpeter/shield-voice-aware/internal/middleware"
	"github.com/sulisumenpeter/shield-voice-aware/internal/usecase"
)

// Synthesizer renders alert speech to MP3.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, modelID string) ([]byte, error)
}

// Deps are the collaborators behind the HTTP surface. Synth may be nil when
// no speech key is configured.
type Deps struct {
	Pipeline        *agent.Pipeline
	Verifier        *auth.Verifier
	Streams         *usecase.StreamService
	Synth           Synthesizer
	TwilioAuthToken string
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
}

// Server bundles the router and its handlers.
type Server struct {
	Router *echo.Echo
	deps   Deps
	log    zerolog.Logger
}

// New constructs the HTTP server with routes.
func New(d Deps) *Server {
	if d.Metrics == nil {
		d.Metrics = metrics.DefaultMetrics
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{Router: NewRouter(), deps: d, log: logging.WithComponent("http")}
	e := s.Router

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/readyz", func(c echo.Context) error { return c.String(http.StatusOK, "ready") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	e.GET(usecase.MediaStreamPath, mediastream.NewHandler(d.Pipeline, d.Metrics).Serve,
		middleware.RequireWebSocket(),
		middleware.StreamToken(d.Verifier, d.Metrics),
	)
	e.POST("/twilio/voice", s.voice, middleware.TwilioAuth(d.TwilioAuthToken))
	e.POST("/voice-alert", s.voiceAlert)
	return s
}

// voice answers Twilio's incoming call webhook with a Connect/Stream TwiML
// pointing at the media stream route.
func (s *Server) voice(c echo.Context) error {
	params, ok := c.Get(middleware.TwilioParamsKey).(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}
	callSid := params["CallSid"]
	if callSid == "" {
		return c.String(http.StatusBadRequest, "CallSid required")
	}
	userID := c.QueryParam("user_id")
	if userID == "" {
		// A stream token without a user never verifies.
		return c.String(http.StatusBadRequest, "user_id required")
	}
	lang := c.QueryParam("lang")

	streamURL := s.deps.Streams.StreamURL(c.Request(), userID, callSid, lang)
	response, err := usecase.ConnectTwiML(streamURL)
	if err != nil {
		s.log.Error().Err(err).Str("callSid", callSid).Msg("failed to build TwiML")
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	s.log.Info().Str("callSid", callSid).Str("from", params["From"]).Str("userId", userID).Msg("incoming call, starting media stream")
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

type voiceAlertRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	ModelID string `json:"modelId"`
}

type voiceAlertResponse struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) voiceAlert(c echo.Context) error {
	if s.deps.Synth == nil {
		s.log.Error().Msg("XI_API_KEY is not set")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "XI_API_KEY not configured"})
	}
	var req voiceAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "'text' is required"})
	}

	audio, err := s.deps.Synth.Synthesize(c.Request().Context(), req.Text, req.VoiceID, req.ModelID)
	if err != nil {
		s.log.Error().Err(err).Msg("ElevenLabs error")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "TTS failed"})
	}
	return c.JSON(http.StatusOK, voiceAlertResponse{
		Audio:  base64.StdEncoding.EncodeToString(audio),
		Format: "mp3",
	})
}
