package reconapi

import (
	"errors"
	"fmt"
)

// ErrEmptyDomain is returned before any request is made when the target is blank.
var ErrEmptyDomain = errors.New("domain is required")

// SubmissionError means a scan could not be created. Nothing was recorded
// locally; the caller should surface it and stop.
type SubmissionError struct {
	Domain string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submitting scan for %q: %v", e.Domain, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// FetchError is a transient transport or HTTP failure. StatusCode is zero when
// no response was received.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a response whose shape did not match the protocol. Pollers
// retry it exactly like a FetchError.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried by a poller.
func IsTransient(err error) bool {
	var fe *FetchError
	var pe *ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}
