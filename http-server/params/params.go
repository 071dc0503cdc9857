package params

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var ErrMissingWindow = errors.New("missing required query parameter 'window'")

// Window reads the "window" query parameter in days. An absent parameter
// yields nil.
func Window(r *http.Request) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("window"))
	if raw == "" {
		return nil, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return nil, fmt.Errorf("invalid window %q: must be a positive number of days", raw)
	}
	return &days, nil
}

func RequiredWindow(r *http.Request) (int, error) {
	w, err := Window(r)
	if err != nil {
		return 0, err
	}
	if w == nil {
		return 0, ErrMissingWindow
	}
	return *w, nil
}
