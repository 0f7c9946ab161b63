package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/web"
)

// TimeoutMessage is the notice sent when a request runs past its deadline.
const TimeoutMessage = "The request took too long. Please try again."

// RequestTimeout puts a deadline on each request context. Store calls honour
// it, so a handler that overruns returns a context error which is answered
// with 504 unless a response has already been written.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return web.Fail(c, http.StatusGatewayTimeout, TimeoutMessage)
			}
			return err
		}
	}
}
