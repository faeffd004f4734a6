package middleware

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit rejects request bodies larger than max, given as a
// human-readable size such as "256K" or "1M". A bare number is bytes.
// Oversized bodies get 413 whether or not Content-Length was sent.
func BodyLimit(max string) echo.MiddlewareFunc {
	limit := parseSize(max)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > limit {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
			}
			// Chunked requests carry no Content-Length; cap the reader so
			// the limit holds regardless.
			req.Body = &cappedBody{rc: req.Body, left: limit}
			return next(c)
		}
	}
}

// cappedBody fails the read once more than left bytes have been consumed.
type cappedBody struct {
	rc   io.ReadCloser
	left int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.rc.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}

func (b *cappedBody) Close() error { return b.rc.Close() }

// defaultBodyLimit applies when the configured size cannot be parsed.
const defaultBodyLimit = 1 << 20

var sizeSuffixes = []struct {
	unit   string
	factor int64
}{
	{"KB", 1 << 10}, {"K", 1 << 10},
	{"MB", 1 << 20}, {"M", 1 << 20},
	{"GB", 1 << 30}, {"G", 1 << 30},
}

// parseSize converts "512", "256K", "1M" or "2G" to a byte count.
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultBodyLimit
	}
	factor := int64(1)
	for _, suf := range sizeSuffixes {
		if strings.HasSuffix(s, suf.unit) {
			factor = suf.factor
			s = strings.TrimSpace(strings.TrimSuffix(s, suf.unit))
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n * factor
}
