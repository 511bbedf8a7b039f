package routes

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRoute is returned when the hostname already has a rule.
	ErrDuplicateRoute = errors.New("route already exists")

	// ErrRouteNotFound is returned when no rule matches the hostname.
	ErrRouteNotFound = errors.New("route not found")

	// ErrInvariantViolation is returned when the remote ingress list is
	// malformed: empty, or not terminated by a catch-all rule.
	ErrInvariantViolation = errors.New("tunnel config violates ingress invariants")

	// ErrInvalidRoute is returned for empty hostnames or services.
	ErrInvalidRoute = errors.New("invalid route")
)

// Route maps a public hostname to a local service.
type Route struct {
	Hostname string `json:"hostname"`
	Service  string `json:"service"`
}

// RouteTable is the host-specific routes in ingress order plus the
// catch-all's service.
type RouteTable struct {
	Routes   []Route `json:"routes"`
	CatchAll string  `json:"catch_all"`
}

// WarningKind classifies what went wrong after the ingress write committed.
type WarningKind int

const (
	// DNSSyncFailed means a DNS create, lookup or delete call failed.
	DNSSyncFailed WarningKind = iota + 1
	// DNSRecordMissing means remove-route found no record to clean up.
	DNSRecordMissing
	// DNSRecordAmbiguous means several records matched and none was deleted.
	DNSRecordAmbiguous
)

func (k WarningKind) String() string {
	switch k {
	case DNSSyncFailed:
		return "dns_sync_failed"
	case DNSRecordMissing:
		return "dns_record_missing"
	case DNSRecordAmbiguous:
		return "dns_record_ambiguous"
	default:
		return "unknown"
	}
}

// Warning reports a DNS step that did not complete. The ingress change it
// accompanies has already been committed.
type Warning struct {
	Kind     WarningKind
	Hostname string
	Message  string
	Hint     string
	Err      error
}

func (w *Warning) String() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %v", w.Message, w.Err)
	}
	return w.Message
}

// OutcomeKind tags a finished operation.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	SuccessWithWarning
)

func (k OutcomeKind) String() string {
	if k == SuccessWithWarning {
		return "success_with_warning"
	}
	return "success"
}

// Result is returned by mutating operations that committed the ingress
// change. Failures are returned as errors instead.
type Result struct {
	Route   Route
	Warning *Warning
}

// Kind reports whether the operation finished cleanly.
func (r *Result) Kind() OutcomeKind {
	if r.Warning != nil {
		return SuccessWithWarning
	}
	return Success
}
