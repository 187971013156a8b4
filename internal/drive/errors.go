package drive

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a path or remote id does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotDir is returned, alongside ErrNotFound, when a path walks through a file.
var ErrNotDir = errors.New("not a directory")

// FetchError describes a failed call to the drive API.
type FetchError struct {
	Op     string // list, download_url, read_range
	Status int    // HTTP status, 0 for transport or decode failures
	Code   int    // API envelope code, 0 when absent
	Err    error

	transient bool
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Code != 0:
		return fmt.Sprintf("%s: status %d code %d: %v", e.Op, e.Status, e.Code, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure was network or server side.
// Transient failures have already been retried by the client.
func (e *FetchError) Transient() bool {
	return e.transient
}

// AsFetchError checks if an error is a FetchError and returns it.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
