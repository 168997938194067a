package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/sulisumenpeter/shield-voice-aware/internal/auth"
	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
)

// StreamTokenKey is the echo context key holding the verified auth.Token.
const StreamTokenKey = "streamToken"

// RequireWebSocket rejects plain HTTP requests with 400.
func RequireWebSocket() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.EqualFold(c.Request().Header.Get("Upgrade"), "websocket") {
				return c.String(http.StatusBadRequest, "Expected WebSocket connection")
			}
			return next(c)
		}
	}
}

// StreamToken verifies the user_id, call_id, ts and token query parameters
// before the connection is upgraded.
func StreamToken(v *auth.Verifier, m *metrics.Metrics) echo.MiddlewareFunc {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			q := c.QueryParams()
			tok := auth.Token{
				UserID:     q.Get("user_id"),
				CallID:     q.Get("call_id"),
				IssuedAtMs: q.Get("ts"),
				Signature:  q.Get("token"),
			}
			if err := v.Verify(tok); err != nil {
				reason, msg := rejection(err)
				m.RecordAuthRejected(reason)
				log.Warn().Err(err).Str("callId", tok.CallID).Str("reason", reason).Msg("media stream rejected")
				return c.String(http.StatusUnauthorized, msg)
			}
			c.Set(StreamTokenKey, tok)
			return next(c)
		}
	}
}

func rejection(err error) (reason, msg string) {
	switch {
	case errors.Is(err, auth.ErrExpired), errors.Is(err, auth.ErrBadTimestamp):
		return "expired", "Token expired"
	case errors.Is(err, auth.ErrBadSignature):
		return "bad_signature", "Invalid token"
	default:
		return "missing", "Unauthorized"
	}
}
