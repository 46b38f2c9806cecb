package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"edgegate/demo"
	"edgegate/gateway"
	"edgegate/history"
	"edgegate/logger"
	"edgegate/manager"
	"edgegate/notifier"
	"edgegate/recorder"
	"edgegate/router"
	"edgegate/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type app struct {
	cfg     *Config
	gateway *gateway.Gateway
	store   store.Storer
}

func newApp(cfg *Config) (*app, error) {
	if err := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return nil, err
	}

	registry, err := router.NewRegistry(cfg.Services)
	if err != nil {
		return nil, err
	}

	// Counters: local with Redis upgrade
	var activeStore store.Storer = store.NewLocalStore()
	if cfg.RedisAddr != "" {
		rs := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rs.Ping(ctx)
		cancel()
		if err != nil {
			logger.Warn("Redis unreachable, keeping in-memory counters", "addr", cfg.RedisAddr, "err", err)
			_ = rs.Close()
		} else {
			_ = activeStore.Close()
			activeStore = rs
			logger.Info("Distributed counters initialized (Redis)", "addr", cfg.RedisAddr)
		}
	} else {
		logger.Info("In-memory counters initialized (Local fallback)")
	}

	var opts []recorder.Option
	if wh := notifier.NewWebhook(cfg.WebhookURL); wh != nil {
		opts = append(opts, recorder.WithAlerter(wh, cfg.AlertBurst))
	}
	rec := recorder.New(history.New(cfg.HistoryCapacity), activeStore, registry.Len(), opts...)

	gw := gateway.New(registry, rec, gateway.WithLatency(cfg.UpstreamLatency.Duration))
	return &app{cfg: cfg, gateway: gw, store: activeStore}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
	_ = logger.Sync()
}

func printServices(w io.Writer, reg router.Registry) {
	fmt.Fprintln(w, "Available services:")
	for _, name := range reg.Names() {
		target, _ := reg.Lookup(name)
		fmt.Fprintf(w, "   - %s: %s\n", name, target)
	}
}

func loadApp(args []string) (*app, error) {
	configPath := "config.json"
	if len(args) > 0 {
		configPath = args[0]
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newRootCmd() *cobra.Command {
	var serve bool

	root := &cobra.Command{
		Use:   "edgegate [config.json]",
		Short: "edgegate routes request envelopes to upstream services by name.",
		Long: `edgegate validates request envelopes against a static service ` +
			`registry and simulates forwarding routed ones. Without subcommands ` +
			`it runs the demo requests and prints statistics.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(args)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.run(cmd.Context(), cmd.OutOrStdout(), serve)
		},
	}
	root.Flags().BoolVar(&serve, "serve", false, "keep the metrics and management APIs up after the demo")

	root.AddCommand(&cobra.Command{
		Use:   "route <envelope-json> [config.json]",
		Short: "Print the routing decision for one envelope",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(args[1:])
			if err != nil {
				return err
			}
			defer a.Close()

			var env router.Envelope
			if err := json.Unmarshal([]byte(args[0]), &env); err != nil {
				return fmt.Errorf("parse envelope: %w", err)
			}
			out, err := json.MarshalIndent(a.gateway.Route(env), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "services [config.json]",
		Short: "List the configured service registry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(args)
			if err != nil {
				return err
			}
			defer a.Close()
			printServices(cmd.OutOrStdout(), a.gateway.Registry())
			return nil
		},
	})

	return root
}

func (a *app) run(ctx context.Context, out io.Writer, serve bool) error {
	fmt.Fprintf(out, "STARTING EDGEGATE\n%s\n", strings.Repeat("=", 50))
	printServices(out, a.gateway.Registry())
	logger.Info("Gateway started", "services", a.gateway.Registry().Len(), "latency", a.cfg.UpstreamLatency.Duration)

	var servers []*http.Server
	if serve {
		var err error
		if servers, err = a.startServers(); err != nil {
			return err
		}
	}

	sum, err := demo.Run(ctx, a.gateway, demo.Examples(), out, demo.Options{Rate: a.cfg.DemoRate})
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("Demo interrupted", "routed", sum.Routed, "rejected", sum.Rejected)
	case err != nil:
		return err
	default:
		logger.Info("Demo finished", "routed", sum.Routed, "rejected", sum.Rejected)
	}

	if !serve {
		return nil
	}

	<-ctx.Done()
	logger.Info("edgegate stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(s *http.Server) {
			defer wg.Done()
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Server shutdown failed", "addr", s.Addr, "err", err)
			}
		}(srv)
	}
	wg.Wait()

	logger.Info("All servers stopped gracefully")
	return nil
}

// startServers binds every port before serving any, so a port conflict is
// reported as an error instead of a background log line.
func (a *app) startServers() ([]*http.Server, error) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	servers := []*http.Server{
		{
			Addr:              fmt.Sprintf(":%d", a.cfg.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 2 * time.Second,
		},
		{
			Addr:              fmt.Sprintf(":%d", a.cfg.ManagementPort),
			Handler:           manager.NewManagementAPI(a.gateway).Handler(),
			ReadHeaderTimeout: 2 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return nil, fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		listeners = append(listeners, ln)
	}

	for i, srv := range servers {
		go func(s *http.Server, ln net.Listener) {
			logger.Info("Listening", "addr", s.Addr)
			if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Server failed", "addr", s.Addr, "err", err)
			}
		}(srv, listeners[i])
	}
	return servers, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("edgegate failed", "err", err)
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}
