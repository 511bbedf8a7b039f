package cloudflare

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingPayload is returned when the API reports success without a result.
var ErrMissingPayload = errors.New("cloudflare API returned no result")

// ErrAmbiguousRecord is matched by *AmbiguousRecordError.
var ErrAmbiguousRecord = errors.New("multiple DNS records match hostname")

// APIError is a response whose envelope reported success=false, or a
// response that could not be read as an envelope at all.
type APIError struct {
	Op       string
	Status   int
	Messages []string
}

// Message joins the remote error messages. It may be empty.
func (e *APIError) Message() string {
	return strings.Join(e.Messages, ", ")
}

func (e *APIError) Error() string {
	msg := e.Message()
	if msg == "" {
		return fmt.Sprintf("failed to %s (HTTP %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("failed to %s: %s", e.Op, msg)
}

// TransportError wraps a network or IO failure below the API layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AmbiguousRecordError lists every record id that matched a lookup.
type AmbiguousRecordError struct {
	Hostname string
	IDs      []string
}

func (e *AmbiguousRecordError) Error() string {
	return fmt.Sprintf("%d DNS records match %s: %s", len(e.IDs), e.Hostname, strings.Join(e.IDs, ", "))
}

func (e *AmbiguousRecordError) Is(target error) bool {
	return target == ErrAmbiguousRecord
}
