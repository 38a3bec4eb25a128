// Package config loads and validates prerender configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Datastore backends.
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Analytics sink names.
const (
	SinkLog       = "log"
	SinkDatastore = "datastore"
	SinkPubSub    = "pubsub"
	SinkRedis     = "redis"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Datastore DatastoreConfig `mapstructure:"datastore"`
	Gone      GoneConfig      `mapstructure:"gone"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Homepage  HomepageConfig  `mapstructure:"homepage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	SPA       SPAConfig       `mapstructure:"spa"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SiteConfig describes the public job board.
type SiteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Name    string `mapstructure:"name"`
}

// DatastoreConfig selects where jobs are read from.
type DatastoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	REST     RESTConfig     `mapstructure:"rest"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	// SeedFile is a JSON array of job rows for the memory backend.
	SeedFile string `mapstructure:"seed_file"`
}

// RESTConfig points at the hosted PostgREST endpoint.
type RESTConfig struct {
	URL         string        `mapstructure:"url"`
	Key         string        `mapstructure:"key"`
	Table       string        `mapstructure:"table"`
	VisitsTable string        `mapstructure:"visits_table"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PostgresConfig controls direct database access.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	JobsTable       string        `mapstructure:"jobs_table"`
	VisitsTable     string        `mapstructure:"visits_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// GoneConfig locates the removed-URL list.
type GoneConfig struct {
	// Source is a gs://, http(s):// or file location. Empty means
	// {site.base_url}/410-urls.txt.
	Source     string        `mapstructure:"source"`
	TTL        time.Duration `mapstructure:"ttl"`
	AllTraffic bool          `mapstructure:"all_traffic"`
}

// DedupConfig tunes request collapsing.
type DedupConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// HomepageConfig tunes the homepage job list memo.
type HomepageConfig struct {
	TTL   time.Duration `mapstructure:"ttl"`
	Limit int           `mapstructure:"limit"`
}

// CacheConfig names CDN-specific headers.
type CacheConfig struct {
	ProviderHeader string `mapstructure:"provider_header"`
}

// TrackingConfig configures the bot-visit pixel.
type TrackingConfig struct {
	Path  string  `mapstructure:"path"`
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// AnalyticsConfig selects visit sinks and batching.
type AnalyticsConfig struct {
	Sinks       []string      `mapstructure:"sinks"`
	BufferSize  int           `mapstructure:"buffer_size"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchWait   time.Duration `mapstructure:"batch_wait"`
	SinkTimeout time.Duration `mapstructure:"sink_timeout"`
}

// PubSubConfig holds the topic visit events are published to.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RedisConfig holds the stream visit events are appended to.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// RefreshConfig schedules cache warming.
type RefreshConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// SPAConfig selects the pass-through target.
type SPAConfig struct {
	Origin string `mapstructure:"origin"`
	Dir    string `mapstructure:"dir"`
}

// TelemetryConfig controls request tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Version     string  `mapstructure:"version"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig toggles zap development features. An empty Level keeps the
// default for the chosen flavor.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from .env files, the environment and an optional
// YAML file at path.
func Load(path string) (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("PRERENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names used by the hosted site's build environment.
	_ = v.BindEnv("datastore.rest.url", "PRERENDER_DATASTORE_REST_URL", "VITE_SUPABASE_URL")
	_ = v.BindEnv("datastore.rest.key", "PRERENDER_DATASTORE_REST_KEY", "VITE_SUPABASE_KEY")
	_ = v.BindEnv("site.base_url", "PRERENDER_SITE_BASE_URL", "URL")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadEnvFiles loads .env.local then .env. Neither overrides variables that
// are already set, and missing files are ignored.
func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("site.base_url", "https://seo-vacancy.eu")
	v.SetDefault("site.name", "SEO Jobs in Europe")
	v.SetDefault("datastore.backend", BackendREST)
	v.SetDefault("datastore.rest.url", "")
	v.SetDefault("datastore.rest.key", "")
	v.SetDefault("datastore.rest.table", "jobs")
	v.SetDefault("datastore.rest.visits_table", "bot_visits")
	v.SetDefault("datastore.rest.timeout", 10*time.Second)
	v.SetDefault("datastore.postgres.dsn", "")
	v.SetDefault("datastore.postgres.jobs_table", "jobs")
	v.SetDefault("datastore.postgres.visits_table", "bot_visits")
	v.SetDefault("datastore.postgres.max_conns", 4)
	v.SetDefault("datastore.postgres.min_conns", 0)
	v.SetDefault("datastore.postgres.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("datastore.seed_file", "")
	v.SetDefault("gone.source", "")
	v.SetDefault("gone.ttl", 5*time.Minute)
	v.SetDefault("gone.all_traffic", false)
	v.SetDefault("dedup.window", time.Second)
	v.SetDefault("homepage.ttl", 24*time.Hour)
	v.SetDefault("homepage.limit", 50)
	v.SetDefault("cache.provider_header", "Netlify-CDN-Cache-Control")
	v.SetDefault("tracking.path", "/track/bot-visit")
	v.SetDefault("tracking.rps", 1.0)
	v.SetDefault("tracking.burst", 5)
	v.SetDefault("analytics.sinks", []string{SinkLog})
	v.SetDefault("analytics.buffer_size", 1024)
	v.SetDefault("analytics.batch_size", 100)
	v.SetDefault("analytics.batch_wait", 2*time.Second)
	v.SetDefault("analytics.sink_timeout", 5*time.Second)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "bot-visits")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "bot_visits")
	v.SetDefault("redis.max_len", 100000)
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.spec", "@every 5m")
	v.SetDefault("spa.origin", "")
	v.SetDefault("spa.dir", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "jobboard-prerender")
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("telemetry.sample_ratio", 0.1)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

var knownSinks = []string{SinkLog, SinkDatastore, SinkPubSub, SinkRedis}

// Validate rejects structurally invalid values. Missing datastore
// credentials are not an error; see DatastoreConfigured.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Datastore.Backend {
	case BackendREST, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("datastore.backend must be one of rest, postgres, memory; got %q", c.Datastore.Backend)
	}
	durations := map[string]time.Duration{
		"server.request_timeout": c.Server.RequestTimeout,
		"gone.ttl":               c.Gone.TTL,
		"homepage.ttl":           c.Homepage.TTL,
		"dedup.window":           c.Dedup.Window,
		"analytics.batch_wait":   c.Analytics.BatchWait,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if c.Homepage.Limit < 0 {
		return fmt.Errorf("homepage.limit must be >= 0")
	}
	if !strings.HasPrefix(c.Tracking.Path, "/") {
		return fmt.Errorf("tracking.path must start with /")
	}
	if c.Tracking.RPS < 0 || c.Tracking.Burst < 0 {
		return fmt.Errorf("tracking.rps and tracking.burst must be >= 0")
	}
	for _, sink := range c.Analytics.Sinks {
		if !slices.Contains(knownSinks, sink) {
			return fmt.Errorf("analytics.sinks: unknown sink %q", sink)
		}
	}
	if c.HasSink(SinkPubSub) && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set for the pubsub sink")
	}
	if c.HasSink(SinkRedis) && (c.Redis.Addr == "" || c.Redis.Stream == "") {
		return fmt.Errorf("redis.addr and redis.stream must be set for the redis sink")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}
	if c.Refresh.Enabled && c.Refresh.Spec == "" {
		return fmt.Errorf("refresh.spec must be set when refresh is enabled")
	}
	return nil
}

// HasSink reports whether name is among the configured analytics sinks.
func (c Config) HasSink(name string) bool {
	return slices.Contains(c.Analytics.Sinks, name)
}

// DatastoreConfigured reports whether the selected backend has what it needs
// to answer queries.
func (c Config) DatastoreConfigured() bool {
	switch c.Datastore.Backend {
	case BackendREST:
		return c.Datastore.REST.URL != "" && c.Datastore.REST.Key != ""
	case BackendPostgres:
		return c.Datastore.Postgres.DSN != ""
	case BackendMemory:
		return true
	default:
		return false
	}
}

// GoneSource returns the configured list location, defaulting to the file
// published alongside the site.
func (c Config) GoneSource() string {
	if c.Gone.Source != "" {
		return c.Gone.Source
	}
	return strings.TrimRight(c.Site.BaseURL, "/") + "/410-urls.txt"
}
