package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON shape of every error response.
type Body struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// HTTPErrorHandler renders service errors and echo HTTP errors with the same
// body shape. Internal errors are logged and replaced by a generic message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Render(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

// Render computes the status and body for err.
func Render(err error) (int, Body) {
	var ae *Error
	if errors.As(err, &ae) {
		status := ae.Category.Status()
		msg := ae.Message
		if status >= http.StatusInternalServerError && ae.Category == CategoryInternal {
			msg = "internal server error"
		}
		return status, Body{Category: ae.Category, Message: msg}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprintf("%v", he.Message)
		if he.Code >= http.StatusInternalServerError && he.Code != http.StatusGatewayTimeout {
			msg = http.StatusText(he.Code)
		}
		return he.Code, Body{Category: CategoryForStatus(he.Code), Message: msg}
	}

	return http.StatusInternalServerError, Body{Category: CategoryInternal, Message: "internal server error"}
}
