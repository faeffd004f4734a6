package middleware

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequestTimeout_FastHandlerUnaffected(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/matches")

	err := RequestTimeout(time.Second)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequestTimeout_SlowHandlerGets504(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/matches")

	err := RequestTimeout(20 * time.Millisecond)(func(c echo.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", httpErr.Code)
	}
}

func TestRequestTimeout_HandlerSeesDeadline(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/matches")

	err := RequestTimeout(5 * time.Second)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected a deadline on the request context")
		}
		return c.NoContent(http.StatusNoContent)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestTimeout_ZeroDisables(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/matches")

	err := RequestTimeout(0)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline when the timeout is zero")
		}
		return c.NoContent(http.StatusNoContent)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestTimeout_PanicsReachRecovery(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/matches")

	defer func() {
		if r := recover(); r != "boom" {
			t.Fatalf("expected panic to cross goroutines, got %v", r)
		}
	}()
	_ = RequestTimeout(time.Second)(func(c echo.Context) error {
		panic("boom")
	})(c)
	t.Fatal("expected panic to propagate")
}
