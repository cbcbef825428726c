package domain

import (
	"errors"
	"fmt"
)

// ErrNotFoundUpstream means the archive holds no object for a scan key.
// Scans failing this way are recorded and never retried.
var ErrNotFoundUpstream = errors.New("scan not found in archive")

var (
	ErrZeroScaleFactor = errors.New("annotator scale factor must be non-zero")
	ErrNoSunrise       = errors.New("sun does not rise at this location on this date")
	ErrMalformedScanID = errors.New("malformed scan name")
	ErrUnknownStation  = errors.New("unknown radar station")
)

// DomainError reports invalid input to a pure domain function.
type DomainError struct {
	Op  string
	Err error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

func domainErr(op string, err error) error {
	return &DomainError{Op: op, Err: err}
}

// IsDomainError reports whether err (or anything it wraps) is a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
