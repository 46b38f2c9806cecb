// Package demo feeds a fixed set of example envelopes through a gateway and
// prints what happened.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"edgegate/gateway"
	"edgegate/router"

	"golang.org/x/time/rate"
)

// Examples returns the demo envelopes: three routable requests, one for an
// unknown service, one empty and one without a service name.
func Examples() []router.Envelope {
	return []router.Envelope{
		router.NewEnvelope("usuario", map[string]any{"acao": "criar", "nome": "João Silva"}),
		router.NewEnvelope("produto", map[string]any{"acao": "listar", "categoria": "eletronicos"}),
		router.NewEnvelope("pedido", map[string]any{"acao": "buscar", "id": "12345"}),
		router.NewEnvelope("servico_inexistente", map[string]any{"acao": "teste"}),
		{},
		{Fields: map[string]any{"acao": "teste"}},
	}
}

type Options struct {
	// Rate is envelopes per second. Zero or less means no pacing.
	Rate float64
	// LastRecords is how many history records the final report shows.
	LastRecords int
}

type Summary struct {
	Routed   int
	Rejected int
}

// Run processes envelopes in order and writes a report to w. It stops early
// only when ctx is done.
func Run(ctx context.Context, gw *gateway.Gateway, envelopes []router.Envelope, w io.Writer, opts Options) (Summary, error) {
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)
	if opts.LastRecords <= 0 {
		opts.LastRecords = 5
	}

	var sum Summary
	fmt.Fprintf(w, "\nTESTING THE GATEWAY\n%s\n", strings.Repeat("=", 50))

	for i, env := range envelopes {
		if err := limiter.Wait(ctx); err != nil {
			return sum, err
		}

		fmt.Fprintf(w, "\n--- Test %d ---\n", i+1)
		resp, err := gw.Process(ctx, env)

		var rej *router.RejectionError
		switch {
		case errors.As(err, &rej):
			sum.Rejected++
			writeResult(w, map[string]string{"error": rej.Error()})
		case err != nil:
			return sum, err
		default:
			sum.Routed++
			writeResult(w, resp)
		}
	}

	if err := gw.Recorder().Print(w, opts.LastRecords); err != nil {
		return sum, fmt.Errorf("print stats: %w", err)
	}
	return sum, nil
}

func writeResult(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Result: %v\n", v)
		return
	}
	fmt.Fprintf(w, "Result: %s\n", data)
}
