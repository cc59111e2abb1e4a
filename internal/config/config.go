// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App         AppConfig         `koanf:"app"`
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Redis       RedisConfig       `koanf:"redis"`
	JWT         JWTConfig         `koanf:"jwt"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	CORS        CORSConfig        `koanf:"cors"`
	Log         LogConfig         `koanf:"log"`
	Otel        OtelConfig        `koanf:"otel"`
	Queue       QueueConfig       `koanf:"queue"`
	Mail        MailConfig        `koanf:"mail"`
	Analytics   AnalyticsConfig   `koanf:"analytics"`
	Progression ProgressionConfig `koanf:"progression"`
	Export      ExportConfig      `koanf:"export"`
	Bootstrap   BootstrapConfig   `koanf:"bootstrap"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`

	// SessionPruneInterval is how often the worker deletes long-expired
	// refresh tokens. Zero disables pruning.
	SessionPruneInterval time.Duration `koanf:"session_prune_interval"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
	// Writes caps progress submissions per user and endpoint in Window.
	Writes int `koanf:"writes"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// MaxJobTimeout is the longest timeout any job type may use. PendingIdle
// has to stay above it, plus the time a message can sit in the worker
// buffer, or XAUTOCLAIM hands a running job to a second consumer.
const MaxJobTimeout = 5 * time.Minute

// QueueConfig drives both the producer side in the API and the consumer
// side in the worker. Stream, delayed set and dead-letter stream share the
// same prefix.
type QueueConfig struct {
	Stream          string        `koanf:"stream"`
	Group           string        `koanf:"group"`
	Consumer        string        `koanf:"consumer"`
	Workers         int           `koanf:"workers"`
	Capacity        int           `koanf:"capacity"`
	BatchSize       int64         `koanf:"batch_size"`
	BlockTime       time.Duration `koanf:"block_time"`
	PendingIdle     time.Duration `koanf:"pending_idle"`
	PromoteInterval time.Duration `koanf:"promote_interval"`
	BackoffInitial  time.Duration `koanf:"backoff_initial"`
	BackoffMax      time.Duration `koanf:"backoff_max"`
	MaxLen          int64         `koanf:"max_len"`
}

type MailConfig struct {
	SMTPHost    string `koanf:"smtp_host"`
	SMTPPort    int    `koanf:"smtp_port"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	FromAddress string `koanf:"from_address"`
	FromName    string `koanf:"from_name"`
	FrontendURL string `koanf:"frontend_url"`
}

type AnalyticsConfig struct {
	CachePrefix string        `koanf:"cache_prefix"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
	HistoryDays int           `koanf:"history_days"`
}

type ProgressionConfig struct {
	MinAccuracy    float64 `koanf:"min_accuracy"`
	EmailThreshold float64 `koanf:"email_threshold"`
}

type ExportConfig struct {
	Dir string `koanf:"dir"`
}

type BootstrapConfig struct {
	FirstUserAdmin bool   `koanf:"first_user_admin"`
	AdminRole      string `koanf:"admin_role"`
	Guard          string `koanf:"guard"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
	Addr    string `koanf:"addr"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Sor-Ser",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "sorser",
		"jwt.audience":             "sorser-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"jwt.session_prune_interval": "1h",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,
		"rate_limit.writes":   30,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "sorser",

		"queue.stream":           "sorser:jobs",
		"queue.group":            "sorser-workers",
		"queue.workers":          4,
		"queue.capacity":         64,
		"queue.batch_size":       10,
		"queue.block_time":       "2s",
		"queue.pending_idle":     "15m",
		"queue.promote_interval": "1s",
		"queue.backoff_initial":  "5s",
		"queue.backoff_max":      "5m",
		"queue.max_len":          100000,

		"mail.smtp_port":    587,
		"mail.from_name":    "Sor-Ser",
		"mail.frontend_url": "http://localhost:3000",

		"analytics.cache_prefix": "sorser:analytics:user:",
		"analytics.cache_ttl":    "24h",
		"analytics.history_days": 30,

		"progression.min_accuracy":    70.0,
		"progression.email_threshold": 80.0,

		"export.dir": "storage/app",

		"bootstrap.first_user_admin": true,
		"bootstrap.admin_role":       "Admin",
		"bootstrap.guard":            "web",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",
		"metrics.addr":    ":9090",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"JWT_SESSION_PRUNE_INTERVAL":  "jwt.session_prune_interval",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_WRITES":           "rate_limit.writes",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"QUEUE_STREAM":                "queue.stream",
	"QUEUE_GROUP":                 "queue.group",
	"QUEUE_CONSUMER":              "queue.consumer",
	"QUEUE_WORKERS":               "queue.workers",
	"MAIL_HOST":                   "mail.smtp_host",
	"MAIL_PORT":                   "mail.smtp_port",
	"MAIL_USERNAME":               "mail.username",
	"MAIL_PASSWORD":               "mail.password",
	"MAIL_FROM_ADDRESS":           "mail.from_address",
	"MAIL_FROM_NAME":              "mail.from_name",
	"FRONTEND_URL":                "mail.frontend_url",
	"ANALYTICS_CACHE_TTL":         "analytics.cache_ttl",
	"PROGRESSION_MIN_ACCURACY":    "progression.min_accuracy",
	"EXPORT_DIR":                  "export.dir",
	"BOOTSTRAP_FIRST_USER_ADMIN":  "bootstrap.first_user_admin",
	"METRICS_ENABLED":             "metrics.enabled",
	"METRICS_ADDR":                "metrics.addr",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.Queue.Stream == "" || c.Queue.Group == "" {
		return fmt.Errorf("queue.stream and queue.group are required")
	}

	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1")
	}

	if c.Queue.PendingIdle <= MaxJobTimeout {
		return fmt.Errorf("queue.pending_idle must exceed the %s job timeout", MaxJobTimeout)
	}

	if c.Progression.MinAccuracy < 0 || c.Progression.MinAccuracy > 100 {
		return fmt.Errorf("progression.min_accuracy must be within 0..100")
	}

	if c.Progression.EmailThreshold < 0 || c.Progression.EmailThreshold > 100 {
		return fmt.Errorf("progression.email_threshold must be within 0..100")
	}

	if c.Bootstrap.AdminRole == "" {
		return fmt.Errorf("bootstrap.admin_role is required")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ConsumerName falls back to a per-process name so several workers can
// share one consumer group.
func (q *QueueConfig) ConsumerName(hostname string) string {
	if q.Consumer != "" {
		return q.Consumer
	}
	return "worker-" + hostname
}
