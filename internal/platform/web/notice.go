// Package web holds the response conventions shared by every handler: a
// notice is the JSON rendition of a one-shot user message, optionally paired
// with a 303 redirect to the page the user should see next.
package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Level classifies a notice for display.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// ErrBodyTooLarge is returned while reading a request body that exceeds the
// configured limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Notice is a user-visible message.
type Notice struct {
	Level    Level  `json:"level"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// Redirect answers 303 See Other with a Location header and the notice as body.
func Redirect(c echo.Context, location string, level Level, message string) error {
	c.Response().Header().Set(echo.HeaderLocation, location)
	return c.JSON(http.StatusSeeOther, Notice{Level: level, Message: message, Redirect: location})
}

// Fail answers with status and a notice that does not navigate anywhere.
func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Notice{Level: LevelDanger, Message: message})
}

// Render answers 200 with data.
func Render(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// FormError turns a failure to read or bind a form into an HTTP error. An
// oversized body is reported as 413 wherever it surfaces in the chain.
func FormError(err error, message string) error {
	if errors.Is(err, ErrBodyTooLarge) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusBadRequest, message).SetInternal(err)
}

// ErrorHandler renders every unhandled error as a notice. Internal errors are
// logged and their text is not exposed.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)

		var he *echo.HTTPError
		if errors.Is(err, ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
			message = "Request body too large"
		} else if errors.As(err, &he) {
			status = he.Code
			switch m := he.Message.(type) {
			case string:
				message = m
			case Notice:
				message = m.Message
			default:
				message = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, Notice{Level: LevelDanger, Message: message})
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
