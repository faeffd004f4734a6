package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds handler time with a context deadline. The handler
// runs on its own goroutine; when the deadline wins the client gets 504 and
// the handler is left with its cancelled context. Handler panics are
// re-raised on the request goroutine so Recovery sees them. A zero timeout
// disables the middleware.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			result, panicked := runDetached(next, c)

			select {
			case err := <-result:
				return err
			case r := <-panicked:
				panic(r)
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
					return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
				}
				return ctx.Err()
			}
		}
	}
}

// runDetached executes next on its own goroutine and reports either the
// returned error or a recovered panic value. Both channels are buffered so
// an abandoned handler can still finish without leaking the goroutine.
func runDetached(next echo.HandlerFunc, c echo.Context) (<-chan error, <-chan any) {
	result := make(chan error, 1)
	panicked := make(chan any, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicked <- r
			}
		}()
		result <- next(c)
	}()

	return result, panicked
}
