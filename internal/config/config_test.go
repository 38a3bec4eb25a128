package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout: 10s
site:
  base_url: https://seojobs.example/
datastore:
  backend: postgres
  postgres:
    dsn: postgres://localhost/jobs
    max_conns: 8
gone:
  source: gs://edge-config/410-urls.txt
  ttl: 1m
  all_traffic: true
dedup:
  window: 2s
homepage:
  limit: 25
tracking:
  rps: 0.5
  burst: 2
analytics:
  sinks: [log, datastore, redis]
redis:
  addr: localhost:6379
refresh:
  spec: "@every 1m"
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.RequestTimeout != 10*time.Second {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if cfg.Datastore.Backend != BackendPostgres || cfg.Datastore.Postgres.MaxConns != 8 {
		t.Fatalf("expected postgres backend overrides, got %+v", cfg.Datastore)
	}
	if !cfg.DatastoreConfigured() {
		t.Fatalf("expected postgres datastore to be configured")
	}
	if cfg.GoneSource() != "gs://edge-config/410-urls.txt" || cfg.Gone.TTL != time.Minute || !cfg.Gone.AllTraffic {
		t.Fatalf("expected gone overrides, got %+v", cfg.Gone)
	}
	if cfg.Dedup.Window != 2*time.Second || cfg.Homepage.Limit != 25 {
		t.Fatalf("expected dedup/homepage overrides")
	}
	if cfg.Tracking.RPS != 0.5 || cfg.Tracking.Burst != 2 {
		t.Fatalf("expected tracking overrides, got %+v", cfg.Tracking)
	}
	if !slices.Equal(cfg.Analytics.Sinks, []string{SinkLog, SinkDatastore, SinkRedis}) {
		t.Fatalf("unexpected sinks %v", cfg.Analytics.Sinks)
	}
	if !cfg.HasSink(SinkRedis) || cfg.HasSink(SinkPubSub) {
		t.Fatalf("HasSink mismatch for %v", cfg.Analytics.Sinks)
	}
	if cfg.Refresh.Spec != "@every 1m" || cfg.Logging.Development {
		t.Fatalf("expected refresh/logging overrides")
	}
	// Untouched sections keep their defaults.
	if cfg.Homepage.TTL != 24*time.Hour || cfg.Redis.Stream != "bot_visits" {
		t.Fatalf("expected defaults to survive, got %+v %+v", cfg.Homepage, cfg.Redis)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Gone.TTL != 5*time.Minute || cfg.Dedup.Window != time.Second {
		t.Fatalf("unexpected timing defaults: %+v %+v", cfg.Gone, cfg.Dedup)
	}
	if cfg.Homepage.Limit != 50 || cfg.Tracking.Path != "/track/bot-visit" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Homepage, cfg.Tracking)
	}
	if cfg.Cache.ProviderHeader != "Netlify-CDN-Cache-Control" {
		t.Fatalf("unexpected provider header %q", cfg.Cache.ProviderHeader)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PRERENDER_SERVER_PORT", "7070")
	t.Setenv("VITE_SUPABASE_URL", "https://db.example.supabase.co")
	t.Setenv("VITE_SUPABASE_KEY", "anon-key")
	t.Setenv("PRERENDER_ANALYTICS_SINKS", "log,datastore")
	t.Setenv("PRERENDER_GONE_TTL", "90s")
	t.Setenv("URL", "https://seojobs.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if !cfg.DatastoreConfigured() || cfg.Datastore.REST.Key != "anon-key" {
		t.Fatalf("expected rest credentials from env, got %+v", cfg.Datastore.REST)
	}
	if !slices.Equal(cfg.Analytics.Sinks, []string{"log", "datastore"}) {
		t.Fatalf("expected sinks from env, got %v", cfg.Analytics.Sinks)
	}
	if cfg.Gone.TTL != 90*time.Second {
		t.Fatalf("expected gone ttl 90s, got %v", cfg.Gone.TTL)
	}
	if cfg.GoneSource() != "https://seojobs.example/410-urls.txt" {
		t.Fatalf("unexpected gone source %q", cfg.GoneSource())
	}
}

func TestDatastoreConfigured(t *testing.T) {
	t.Parallel()

	var c Config
	c.Datastore.Backend = BackendREST
	if c.DatastoreConfigured() {
		t.Fatalf("rest without credentials must not be configured")
	}
	c.Datastore.REST.URL = "https://db.example"
	if c.DatastoreConfigured() {
		t.Fatalf("rest without key must not be configured")
	}
	c.Datastore.REST.Key = "k"
	if !c.DatastoreConfigured() {
		t.Fatalf("rest with url and key must be configured")
	}
	c.Datastore.Backend = BackendMemory
	if !c.DatastoreConfigured() {
		t.Fatalf("memory backend is always configured")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Datastore: DatastoreConfig{Backend: BackendREST},
		Tracking:  TrackingConfig{Path: "/track/bot-visit"},
		Analytics: AnalyticsConfig{Sinks: []string{SinkLog}},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown backend", func(c *Config) { c.Datastore.Backend = "mongo" }, "datastore.backend"},
		{"negative ttl", func(c *Config) { c.Gone.TTL = -time.Second }, "gone.ttl"},
		{"negative limit", func(c *Config) { c.Homepage.Limit = -1 }, "homepage.limit"},
		{"relative tracking path", func(c *Config) { c.Tracking.Path = "track" }, "tracking.path"},
		{"negative rps", func(c *Config) { c.Tracking.RPS = -1 }, "tracking.rps"},
		{"unknown sink", func(c *Config) { c.Analytics.Sinks = []string{"kafka"} }, "analytics.sinks"},
		{"pubsub without topic", func(c *Config) { c.Analytics.Sinks = []string{SinkPubSub} }, "pubsub.project_id"},
		{"redis without addr", func(c *Config) { c.Analytics.Sinks = []string{SinkRedis} }, "redis.addr"},
		{"refresh without spec", func(c *Config) { c.Refresh.Enabled = true }, "refresh.spec"},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "telemetry.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			c.Analytics.Sinks = slices.Clone(base.Analytics.Sinks)
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
