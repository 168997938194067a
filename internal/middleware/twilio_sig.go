package middleware

import (
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go/client"
)

// TwilioParamsKey is the echo context key holding the parsed webhook form.
const TwilioParamsKey = "twilioParams"

// TwilioAuth validates webhook signatures and stores the form as
// map[string]string under TwilioParamsKey. An empty token skips the check
// but still parses the form.
func TwilioAuth(authToken string) echo.MiddlewareFunc {
	validator := client.NewRequestValidator(authToken)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return c.String(http.StatusBadRequest, "Failed to read request body")
			}
			form, err := url.ParseQuery(string(body))
			if err != nil {
				return c.String(http.StatusBadRequest, "Failed to parse form data")
			}
			params := make(map[string]string, len(form))
			for k, v := range form {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}

			if authToken != "" {
				fullURL := "https://" + req.Host + req.URL.RequestURI()
				signature := req.Header.Get("X-Twilio-Signature")
				if signature == "" || !validator.Validate(fullURL, params, signature) {
					return c.String(http.StatusUnauthorized, "Invalid Twilio signature")
				}
			}

			c.Set(TwilioParamsKey, params)
			return next(c)
		}
	}
}
