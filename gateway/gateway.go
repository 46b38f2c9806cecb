// Package gateway runs envelopes through the router and produces the
// synthetic upstream response. No request ever leaves the process: a routed
// envelope waits out a configurable latency and gets a canned success.
package gateway

import (
	"context"
	"fmt"
	"time"

	"edgegate/logger"
	"edgegate/recorder"
	"edgegate/router"
)

const DefaultLatency = time.Second

type Response struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	URL       string    `json:"url"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Gateway struct {
	registry router.Registry
	recorder *recorder.Recorder
	latency  time.Duration
	now      func() time.Time
}

type Option func(*Gateway)

// WithLatency sets the simulated upstream latency. Zero disables it.
func WithLatency(d time.Duration) Option {
	return func(g *Gateway) { g.latency = d }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func New(registry router.Registry, rec *recorder.Recorder, opts ...Option) *Gateway {
	g := &Gateway{
		registry: registry,
		recorder: rec,
		latency:  DefaultLatency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Registry() router.Registry {
	return g.registry
}

func (g *Gateway) Recorder() *recorder.Recorder {
	return g.recorder
}

// Route is the dry-run path: a decision with no recording.
func (g *Gateway) Route(env router.Envelope) router.Decision {
	return router.Route(env, g.registry)
}

// Process records env, routes it and, when routed, returns the simulated
// upstream response. Rejections come back as *router.RejectionError.
func (g *Gateway) Process(ctx context.Context, env router.Envelope) (*Response, error) {
	start := time.Now()
	g.recorder.Inbound(env)

	d := router.Route(env, g.registry)
	g.recorder.Decision(env, d)
	if err := d.Err(); err != nil {
		return nil, err
	}

	logger.Info("Forwarding (simulated)", "service", d.ServiceName, "target", d.Target, "latency", g.latency)
	if err := g.wait(ctx); err != nil {
		logger.Warn("Request abandoned", "service", d.ServiceName, "err", err)
		return nil, fmt.Errorf("process %s: %w", d.ServiceName, err)
	}

	resp := &Response{
		Status:    "success",
		Service:   d.ServiceName,
		URL:       d.Target,
		Message:   fmt.Sprintf("data processed by service %s", d.ServiceName),
		Timestamp: g.now(),
	}
	g.recorder.Outbound(resp)
	g.recorder.ObserveLatency(d.ServiceName, time.Since(start))
	return resp, nil
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
