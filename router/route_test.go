package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) Registry {
	t.Helper()
	r, err := NewRegistry(map[string]string{
		"usuario": "http://localhost:3001",
		"produto": "http://localhost:3002",
		"pedido":  "http://localhost:3003",
	})
	require.NoError(t, err)
	return r
}

func strPtr(s string) *string { return &s }

func TestRouteScenarios(t *testing.T) {
	reg := MustRegistry(map[string]string{"usuario": "http://localhost:3001"})

	tests := []struct {
		name   string
		env    Envelope
		want   Decision
		sentry error
	}{
		{
			name: "known service",
			env:  Envelope{ServiceName: strPtr("usuario")},
			want: Routed("usuario", "http://localhost:3001"),
		},
		{
			name:   "empty payload",
			env:    Envelope{},
			want:   Rejected(EmptyPayload, ""),
			sentry: ErrEmptyPayload,
		},
		{
			name:   "empty fields map is still empty",
			env:    Envelope{Fields: map[string]any{}},
			want:   Rejected(EmptyPayload, ""),
			sentry: ErrEmptyPayload,
		},
		{
			name:   "no service name",
			env:    Envelope{Fields: map[string]any{"acao": "teste"}},
			want:   Rejected(MissingServiceName, ""),
			sentry: ErrMissingServiceName,
		},
		{
			name:   "unknown service",
			env:    Envelope{ServiceName: strPtr("servico_inexistente")},
			want:   Rejected(UnknownService, "servico_inexistente"),
			sentry: ErrUnknownService,
		},
		{
			name:   "present but empty service name",
			env:    Envelope{ServiceName: strPtr("")},
			want:   Rejected(UnknownService, ""),
			sentry: ErrUnknownService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Route(tt.env, reg)
			assert.Equal(t, tt.want, got)
			if tt.sentry == nil {
				assert.True(t, got.IsRouted())
				assert.NoError(t, got.Err())
				return
			}
			assert.False(t, got.IsRouted())
			assert.ErrorIs(t, got.Err(), tt.sentry)
		})
	}
}

func TestRouteEveryRegisteredService(t *testing.T) {
	reg := testRegistry(t)
	for name, target := range reg.Entries() {
		d := Route(NewEnvelope(name, map[string]any{"acao": "listar"}), reg)
		require.True(t, d.IsRouted(), name)
		assert.Equal(t, target, d.Target)
		assert.Equal(t, name, d.ServiceName)
	}
}

func TestRouteEmptyIgnoresRegistry(t *testing.T) {
	for _, reg := range []Registry{{}, testRegistry(t)} {
		assert.Equal(t, EmptyPayload, Route(Envelope{}, reg).Reason)
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	reg := testRegistry(t)
	envs := []Envelope{
		{},
		{Fields: map[string]any{"acao": "teste"}},
		NewEnvelope("pedido", map[string]any{"id": "12345"}),
		NewEnvelope("nope", nil),
	}
	for _, env := range envs {
		assert.Equal(t, Route(env, reg), Route(env, reg))
	}
}

func TestRouteDoesNotMutateEnvelope(t *testing.T) {
	reg := testRegistry(t)
	env := NewEnvelope("usuario", map[string]any{"nome": "João Silva"})
	before := env.Map()
	Route(env, reg)
	assert.Equal(t, before, env.Map())
}

func TestRouteConcurrent(t *testing.T) {
	reg := testRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := reg.Names()[i%reg.Len()]
			for j := 0; j < 100; j++ {
				d := Route(NewEnvelope(name, nil), reg)
				if !d.IsRouted() {
					t.Errorf("expected %s to route", name)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRejectionErrorMessages(t *testing.T) {
	err := Rejected(UnknownService, "servico_inexistente").Err()
	assert.EqualError(t, err, "service 'servico_inexistente' not found")

	var rej *RejectionError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &rej))
	assert.Equal(t, UnknownService, rej.Reason)

	assert.EqualError(t, Rejected(MissingServiceName, "").Err(), "service name not specified")
	assert.EqualError(t, Rejected(EmptyPayload, "").Err(), "empty payload")
}

func TestDecisionJSON(t *testing.T) {
	data, err := json.Marshal(Routed("usuario", "http://localhost:3001"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"outcome":"routed","service":"usuario","target":"http://localhost:3001","message":"valid request"}`, string(data))

	data, err = json.Marshal(Rejected(MissingServiceName, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"outcome":"rejected","reason":"missing_service_name","message":"service name not specified"}`, string(data))
}
