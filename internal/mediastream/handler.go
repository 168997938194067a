package mediastream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sulisumenpeter/shield-voice-aware/internal/agent"
	"github.com/sulisumenpeter/shield-voice-aware/internal/audio"
	"github.com/sulisumenpeter/shield-voice-aware/internal/auth"
	"github.com/sulisumenpeter/shield-voice-aware/internal/logging"
	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
	"github.com/sulisumenpeter/shield-voice-aware/internal/middleware"
	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
)

// State is the lifecycle of one media stream connection.
type State int

const (
	StateUnauthenticated State = iota
	StateConnected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Next returns the state after ev. Closed is terminal.
func (s State) Next(ev InboundEvent) State {
	if s == StateClosed || s == StateUnauthenticated {
		return s
	}
	switch ev.(type) {
	case MediaEvent:
		return StateStreaming
	case StopEvent:
		return StateClosed
	}
	return s
}

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		// Twilio does not send an Origin; the token gates access.
		return true
	},
}

// Handler upgrades authorised requests and runs one CallSession per connection.
type Handler struct {
	pipeline *agent.Pipeline
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewHandler(p *agent.Pipeline, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Handler{pipeline: p, metrics: m, log: logging.WithComponent("mediastream")}
}

// Serve is the echo handler for the media stream route. The session runs on
// the identity of the token verified by middleware.StreamToken.
func (h *Handler) Serve(c echo.Context) error {
	r := c.Request()
	tok, ok := c.Get(middleware.StreamTokenKey).(auth.Token)
	if !ok {
		h.log.Error().Msg("media stream reached handler without a verified token")
		return c.String(http.StatusUnauthorized, "Unauthorized")
	}
	callID, userID := tok.CallID, tok.UserID
	language := c.QueryParam("lang")
	if language == "" {
		language = "en"
	}

	conn, err := upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("callId", callID).Msg("ws upgrade error")
		return nil
	}
	defer func() { _ = conn.Close() }()

	// Flushes run to completion even if the request context ends.
	h.run(context.WithoutCancel(r.Context()), conn, callID, userID, language)
	return nil
}

type connection struct {
	conn  *websocket.Conn
	state State
	log   zerolog.Logger
}

func (c *connection) writeJSON(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *connection) transition(ev InboundEvent) {
	next := c.state.Next(ev)
	if next != c.state {
		c.log.Debug().Stringer("from", c.state).Stringer("to", next).Msg("state change")
		c.state = next
	}
}

func (h *Handler) run(ctx context.Context, ws *websocket.Conn, callID, userID, language string) {
	log := logging.WithCall("mediastream", callID, userID)
	conn := &connection{conn: ws, state: StateConnected, log: log}

	sess := h.pipeline.NewSession(callID, userID, language, func(seg models.Segment) error {
		return conn.writeJSON(NewSegmentEvent(seg))
	})

	h.metrics.RecordSessionStart()
	defer func() {
		sess.Wait()
		h.metrics.RecordSessionEnd(float64(sess.CumulativeRisk()))
	}()

	log.Info().Str("language", language).Msg("media stream connected")
	if err := conn.writeJSON(ConnectedEvent{Type: TypeConnected, CallID: callID}); err != nil {
		log.Warn().Err(err).Msg("send connected failed")
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			sess.Discard()
			conn.state = StateClosed
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("media stream dropped")
			} else {
				log.Info().Msg("media stream closed by remote")
			}
			return
		}

		ev, err := ParseInbound(data)
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				log.Debug().Err(err).Msg("ignoring frame")
			} else {
				log.Warn().Err(err).Msg("bad frame")
			}
			continue
		}
		conn.transition(ev)

		switch e := ev.(type) {
		case StartEvent:
			log.Info().Str("streamSid", e.StreamSID).Msg("stream start")
		case MediaEvent:
			h.handleMedia(ctx, sess, e, log)
		case StopEvent:
			log.Info().Int("segments", sess.Segments()).Int("cumulativeRisk", sess.CumulativeRisk()).Msg("stream stop")
			if err := sess.Finish(ctx); err != nil {
				log.Error().Err(err).Msg("final flush failed")
			}
			if err := conn.writeJSON(CallEndedEvent{Type: TypeCallEnded, CallID: callID}); err != nil {
				log.Warn().Err(err).Msg("send call.ended failed")
			}
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Handler) handleMedia(ctx context.Context, sess *agent.CallSession, e MediaEvent, log zerolog.Logger) {
	if e.Payload == "" {
		return
	}
	samples, err := audio.DecodeMediaPayload(e.Payload)
	if err != nil {
		h.metrics.RecordDecodeError()
		log.Debug().Err(err).Msg("dropping undecodable frame")
		return
	}
	h.metrics.RecordMediaFrame()
	if err := sess.HandleMedia(ctx, samples); err != nil {
		log.Error().Err(err).Msg("flush failed")
	}
}
