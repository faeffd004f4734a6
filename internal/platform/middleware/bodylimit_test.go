package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"2K", 2 << 10},
		{"2KB", 2 << 10},
		{"1M", 1 << 20},
		{"10MB", 10 << 20},
		{"1G", 1 << 30},
		{" 64k ", 64 << 10},
		{"", defaultBodyLimit},
		{"junk", defaultBodyLimit},
		{"-5", defaultBodyLimit},
		{"0", defaultBodyLimit},
	}
	for _, tc := range cases {
		if got := parseSize(tc.in); got != tc.want {
			t.Errorf("parseSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func postBody(body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/donors", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	c, _ := postBody(strings.NewReader(strings.Repeat("x", 2048)))

	called := false
	err := BodyLimit("1K")(func(c echo.Context) error {
		called = true
		return nil
	})(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
	if called {
		t.Fatal("handler must not run for an oversized body")
	}
}

// iotest-style reader that hides its length from httptest.NewRequest, the
// same shape as a chunked upload.
type opaqueReader struct {
	r io.Reader
}

func (o opaqueReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestBodyLimit_RejectsChunkedOverflow(t *testing.T) {
	c, _ := postBody(opaqueReader{r: strings.NewReader(strings.Repeat("x", 2048))})

	err := BodyLimit("1K")(func(c echo.Context) error {
		_, readErr := io.ReadAll(c.Request().Body)
		return readErr
	})(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from the capped reader, got %v", err)
	}
}

func TestBodyLimit_AllowsExactLimit(t *testing.T) {
	payload := strings.Repeat("x", 1024)
	c, _ := postBody(strings.NewReader(payload))

	err := BodyLimit("1K")(func(c echo.Context) error {
		got, readErr := io.ReadAll(c.Request().Body)
		if readErr != nil {
			return readErr
		}
		if len(got) != len(payload) {
			t.Errorf("expected %d bytes, read %d", len(payload), len(got))
		}
		return c.NoContent(http.StatusNoContent)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBodyLimit_SkipsBodylessRequests(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/donors")

	called := false
	err := BodyLimit("1K")(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusNoContent)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected handler to run")
	}
}
