package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ServiceNameKey is the payload key that carries the routing key.
const ServiceNameKey = "serviceName"

var ErrServiceNameType = errors.New("serviceName must be a string")

// Envelope is a caller-supplied request payload. ServiceName is nil when the
// payload has no routing key at all; every other key lives in Fields.
type Envelope struct {
	ServiceName *string
	Fields      map[string]any
}

// NewEnvelope builds an envelope addressed to service with optional extra
// fields.
func NewEnvelope(service string, fields map[string]any) Envelope {
	return Envelope{ServiceName: &service, Fields: fields}
}

// EnvelopeFromMap splits a generic payload into the routing key and the rest.
func EnvelopeFromMap(payload map[string]any) (Envelope, error) {
	var env Envelope
	for k, v := range payload {
		if k == ServiceNameKey {
			name, ok := v.(string)
			if !ok {
				return Envelope{}, fmt.Errorf("%w, got %T", ErrServiceNameType, v)
			}
			env.ServiceName = &name
			continue
		}
		if env.Fields == nil {
			env.Fields = make(map[string]any)
		}
		env.Fields[k] = v
	}
	return env, nil
}

func (e Envelope) IsEmpty() bool {
	return e.ServiceName == nil && len(e.Fields) == 0
}

// Service returns the routing key and whether it was present.
func (e Envelope) Service() (string, bool) {
	if e.ServiceName == nil {
		return "", false
	}
	return *e.ServiceName, true
}

// Map flattens the envelope back into a generic payload.
func (e Envelope) Map() map[string]any {
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	if e.ServiceName != nil {
		out[ServiceNameKey] = *e.ServiceName
	}
	return out
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*e = Envelope{}
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	env, err := EnvelopeFromMap(payload)
	if err != nil {
		return err
	}
	*e = env
	return nil
}
