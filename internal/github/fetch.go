package github

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError is a failed supplementary fetch, carrying the HTTP status so
// callers can pattern-match instead of parsing error strings. A zero status
// means the request never reached the provider.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AccessDenied reports whether the failure looks like missing access rather
// than a transient problem. GitHub answers 404 for private repositories the
// token cannot see, so 404 counts as denied here.
func (e *FetchError) AccessDenied() bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// AsFetchError unwraps err into a *FetchError if one is in the chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
