package router

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reason classifies why an envelope was rejected.
type Reason int

const (
	ReasonNone Reason = iota
	EmptyPayload
	MissingServiceName
	UnknownService
)

var (
	ErrEmptyPayload       = errors.New("empty payload")
	ErrMissingServiceName = errors.New("service name not specified")
	ErrUnknownService     = errors.New("unknown service")
)

func (r Reason) String() string {
	switch r {
	case EmptyPayload:
		return "empty_payload"
	case MissingServiceName:
		return "missing_service_name"
	case UnknownService:
		return "unknown_service"
	default:
		return "none"
	}
}

// Sentinel returns the package error matching r, or nil for ReasonNone.
func (r Reason) Sentinel() error {
	switch r {
	case EmptyPayload:
		return ErrEmptyPayload
	case MissingServiceName:
		return ErrMissingServiceName
	case UnknownService:
		return ErrUnknownService
	default:
		return nil
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Reasons lists every rejection reason.
func Reasons() []Reason {
	return []Reason{EmptyPayload, MissingServiceName, UnknownService}
}

// Decision is the outcome of routing one envelope: either routed to a target
// or rejected with a reason.
type Decision struct {
	ServiceName string
	Target      string
	Reason      Reason
}

func Routed(service, target string) Decision {
	return Decision{ServiceName: service, Target: target}
}

func Rejected(reason Reason, service string) Decision {
	return Decision{Reason: reason, ServiceName: service}
}

func (d Decision) IsRouted() bool {
	return d.Reason == ReasonNone
}

// Message is the human readable status of the decision.
func (d Decision) Message() string {
	switch d.Reason {
	case ReasonNone:
		return "valid request"
	case UnknownService:
		return fmt.Sprintf("service '%s' not found", d.ServiceName)
	default:
		return d.Reason.Sentinel().Error()
	}
}

// Err returns nil for routed decisions and a *RejectionError otherwise.
func (d Decision) Err() error {
	if d.IsRouted() {
		return nil
	}
	return &RejectionError{Reason: d.Reason, Service: d.ServiceName}
}

type decisionJSON struct {
	Outcome string `json:"outcome"`
	Service string `json:"service,omitempty"`
	Target  string `json:"target,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

func (d Decision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{Service: d.ServiceName, Message: d.Message()}
	if d.IsRouted() {
		out.Outcome = "routed"
		out.Target = d.Target
	} else {
		out.Outcome = "rejected"
		out.Reason = d.Reason.String()
	}
	return json.Marshal(out)
}

// RejectionError carries a rejected decision through error returns.
type RejectionError struct {
	Reason  Reason
	Service string
}

func (e *RejectionError) Error() string {
	return Rejected(e.Reason, e.Service).Message()
}

func (e *RejectionError) Unwrap() error {
	return e.Reason.Sentinel()
}
