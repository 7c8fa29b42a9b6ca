package utils

import (
	"fmt"
	"net/http"
	"strconv"
)

// PageParams are the limit/offset query parameters of a list endpoint.
// A zero Limit lets the service pick its default.
type PageParams struct {
	Limit  int
	Offset int
}

// ParsePageParams reads ?limit= and ?offset=. Both must be non-negative integers when present.
func ParsePageParams(r *http.Request) (PageParams, error) {
	limit, err := parseIntQuery(r, "limit")
	if err != nil {
		return PageParams{}, err
	}
	offset, err := parseIntQuery(r, "offset")
	if err != nil {
		return PageParams{}, err
	}
	return PageParams{Limit: limit, Offset: offset}, nil
}

func parseIntQuery(r *http.Request, name string) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return i, nil
}
