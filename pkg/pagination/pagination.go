// Package pagination implements offset windowing for list endpoints. Limits
// are clamped to MaxLimit so a single request cannot page the whole registry.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the page window requested by the client.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads the limit and offset query parameters, applying the
// default and the MaxLimit clamp.
func FromContext(c echo.Context) Params {
	return Params{
		Limit:  clampLimit(intQuery(c, "limit")),
		Offset: max(intQuery(c, "offset"), 0),
	}
}

func intQuery(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// HasNext reports whether rows remain past the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Response is the envelope every list endpoint returns.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"hasMore"`
}

// NewResponse wraps one page of data with its window and the total row count.
func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

// Slice applies the page window to a pre-sorted slice, the in-memory
// counterpart of a LIMIT/OFFSET query. The returned page is never nil.
func Slice[T any](all []T, p Params) ([]T, int) {
	total := len(all)
	if p.Offset >= total {
		return []T{}, total
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return all[p.Offset:end], total
}
