package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Services        map[string]string `json:"services"`
	HistoryCapacity int               `json:"history_capacity"`
	UpstreamLatency Duration          `json:"upstream_latency"`
	DemoRate        float64           `json:"demo_rate"`
	MetricsPort     int               `json:"metrics_port"`
	ManagementPort  int               `json:"management_port"`
	RedisAddr       string            `json:"redis_addr"`
	RedisPassword   string            `json:"redis_password"`
	WebhookURL      string            `json:"webhook_url"`
	AlertBurst      int               `json:"alert_burst"`
	LogLevel        string            `json:"log_level"`
	LogFile         string            `json:"log_file"`
}

// Duration reads "1s"-style strings (or plain nanoseconds) from JSON.
type Duration struct {
	time.Duration
	set bool
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration, d.set = v, true
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer: %s", b)
	}
	d.Duration, d.set = time.Duration(n), true
	return nil
}

func DefaultServices() map[string]string {
	return map[string]string{
		"usuario": "http://localhost:3001",
		"produto": "http://localhost:3002",
		"pedido":  "http://localhost:3003",
	}
}

// LoadConfig reads path (a missing file is fine), then .env, then the
// EDGEGATE_* environment, then fills defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.Services) == 0 {
		cfg.Services = DefaultServices()
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 100
	}
	if !cfg.UpstreamLatency.set {
		cfg.UpstreamLatency = Duration{Duration: time.Second, set: true}
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
	if cfg.ManagementPort == 0 {
		cfg.ManagementPort = 9091
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if val := os.Getenv("EDGEGATE_SERVICES"); val != "" {
		services, err := parseServices(val)
		if err != nil {
			return err
		}
		cfg.Services = services
	}
	if err := envInt("EDGEGATE_HISTORY_CAPACITY", &cfg.HistoryCapacity); err != nil {
		return err
	}
	if val := os.Getenv("EDGEGATE_UPSTREAM_LATENCY"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("EDGEGATE_UPSTREAM_LATENCY: %w", err)
		}
		cfg.UpstreamLatency = Duration{Duration: d, set: true}
	}
	if val := os.Getenv("EDGEGATE_DEMO_RATE"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("EDGEGATE_DEMO_RATE: %w", err)
		}
		cfg.DemoRate = f
	}
	if err := envInt("EDGEGATE_METRICS_PORT", &cfg.MetricsPort); err != nil {
		return err
	}
	if err := envInt("EDGEGATE_MANAGEMENT_PORT", &cfg.ManagementPort); err != nil {
		return err
	}
	if val := os.Getenv("EDGEGATE_REDIS_ADDR"); val != "" {
		cfg.RedisAddr = val
	}
	if val := os.Getenv("EDGEGATE_REDIS_PASSWORD"); val != "" {
		cfg.RedisPassword = val
	}
	if val := os.Getenv("EDGEGATE_WEBHOOK_URL"); val != "" {
		cfg.WebhookURL = val
	}
	if val := os.Getenv("EDGEGATE_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("EDGEGATE_LOG_FILE"); val != "" {
		cfg.LogFile = val
	}
	return nil
}

func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

// parseServices reads "name=url,name=url".
func parseServices(s string) (map[string]string, error) {
	services := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, target, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("EDGEGATE_SERVICES: %q is not name=url", pair)
		}
		services[strings.TrimSpace(name)] = strings.TrimSpace(target)
	}
	return services, nil
}
