package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits page_size.
	DefaultPageSize = 20
	// MaxPageSize caps the supported page_size to prevent unbounded queries.
	MaxPageSize = 100
)

// ErrInvalidPageSize is returned when page_size is not a positive integer.
var ErrInvalidPageSize = errors.New("pagination: invalid page_size")

// Params bundles the paging values extracted from a request. After holds the
// decoded cursor position, empty for the first page.
type Params struct {
	PageSize int
	After    string
}

// FromRequest parses the page_size and page_token query parameters. Page
// sizes above MaxPageSize are clamped rather than rejected.
func FromRequest(r *http.Request) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	query := r.URL.Query()

	params := Params{PageSize: DefaultPageSize}
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidPageSize, raw)
		}
		if size > MaxPageSize {
			size = MaxPageSize
		}
		params.PageSize = size
	}

	after, err := DecodeToken(query.Get("page_token"))
	if err != nil {
		return Params{}, err
	}
	params.After = after
	return params, nil
}
