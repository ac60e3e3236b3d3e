// Package config loads ServiceHub configuration from defaults, the
// environment (optionally seeded from a .env file) and a YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at a YAML overlay.
const ConfigFileEnv = "SERVICEHUB_CONFIG"

// Config is the full runtime configuration.
type Config struct {
	Environment string `env:"SERVICEHUB_ENV,default=development" yaml:"environment"`

	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Provider  ProviderConfig  `yaml:"provider"`
	Polling   PollingConfig   `yaml:"polling"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port         int           `env:"PORT,default=5000" yaml:"port"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT,default=15s" yaml:"read_timeout"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT,default=60s" yaml:"write_timeout"`
	// CORSOrigins is a comma separated list; "*" allows any origin.
	CORSOrigins string `env:"CORS_ORIGINS,default=*" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// DSN empty selects in-memory storage.
	DSN             string        `env:"DATABASE_URL" yaml:"dsn"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=10" yaml:"max_open_conns"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m" yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	// Addr empty keeps the LLR status cache in process.
	Addr     string        `env:"REDIS_ADDR" yaml:"addr"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `env:"REDIS_DB,default=0" yaml:"db"`
	CacheTTL time.Duration `env:"REDIS_STATUS_TTL,default=4s" yaml:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret            string        `env:"JWT_SECRET" yaml:"jwt_secret"`
	TokenTTL             time.Duration `env:"JWT_TTL,default=24h" yaml:"token_ttl"`
	DefaultAdminUsername string        `env:"ADMIN_USERNAME,default=admin" yaml:"default_admin_username"`
	DefaultAdminPassword string        `env:"ADMIN_PASSWORD,default=admin123" yaml:"default_admin_password"`
}

type ProviderConfig struct {
	APIKey           string        `env:"LLR_API_KEY" yaml:"api_key"`
	ExamURL          string        `env:"LLR_EXAM_URL,default=https://api.jkdigitalcenter.in/api/v2/llexam/doexam.php" yaml:"exam_url"`
	StatusURL        string        `env:"LLR_STATUS_URL,default=https://api.jkdigitalcenter.in/api/v2/llexam/checkexam.php" yaml:"status_url"`
	DLURL            string        `env:"DL_PDF_URL,default=https://api.jkdigitalcenter.in/api/v2/dlpdfapi.php" yaml:"dl_url"`
	PaymentStatusURL string        `env:"PAYMENT_STATUS_URL,default=https://api.jkdigitalcenter.in/api/v2/pg/orders/pg-order-status.php" yaml:"payment_status_url"`
	CallbackURL      string        `env:"LLR_CALLBACK_URL,default=http://localhost:5000/api/llr/callback" yaml:"callback_url"`
	SubmitTimeout    time.Duration `env:"PROVIDER_SUBMIT_TIMEOUT,default=90s" yaml:"submit_timeout"`
	StatusTimeout    time.Duration `env:"PROVIDER_STATUS_TIMEOUT,default=30s" yaml:"status_timeout"`
	DLTimeout        time.Duration `env:"PROVIDER_DL_TIMEOUT,default=60s" yaml:"dl_timeout"`
	MaxRetries       int           `env:"PROVIDER_MAX_RETRIES,default=3" yaml:"max_retries"`
	BreakerFailures  int           `env:"PROVIDER_BREAKER_FAILURES,default=5" yaml:"breaker_failures"`
	BreakerCooldown  time.Duration `env:"PROVIDER_BREAKER_COOLDOWN,default=30s" yaml:"breaker_cooldown"`
	UPIID            string        `env:"UPI_ID,default=payment@jkdigitalcenter.in" yaml:"upi_id"`
	PaymentLinkBase  string        `env:"PAYMENT_LINK_BASE,default=https://api.jkdigitalcenter.in/payment" yaml:"payment_link_base"`
	QRCodeBase       string        `env:"QR_CODE_BASE,default=https://api.qrserver.com/v1/create-qr-code/" yaml:"qr_code_base"`
	PayeeName        string        `env:"UPI_PAYEE_NAME,default=JK Digital Center" yaml:"payee_name"`
}

type PollingConfig struct {
	LLRInterval   time.Duration `env:"LLR_POLL_INTERVAL,default=30s" yaml:"llr_interval"`
	WatchInterval time.Duration `env:"LLR_WATCH_INTERVAL,default=5s" yaml:"watch_interval"`
	PaymentExpiry time.Duration `env:"PAYMENT_ORDER_EXPIRY,default=30m" yaml:"payment_expiry"`
	ExpirySpec    string        `env:"PAYMENT_EXPIRY_CRON,default=@every 5m" yaml:"expiry_spec"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format string `env:"LOG_FORMAT,default=json" yaml:"format"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"LOGIN_RATE_LIMIT_RPS,default=1" yaml:"requests_per_second"`
	Burst             int     `env:"LOGIN_RATE_LIMIT_BURST,default=5" yaml:"burst"`
	// TrustedProxies is a comma separated list of IPs or CIDRs whose
	// X-Forwarded-For header identifies the client.
	TrustedProxies string `env:"TRUSTED_PROXIES" yaml:"trusted_proxies"`
}

type AuditConfig struct {
	// File empty keeps the audit trail in memory only.
	File     string `env:"AUDIT_LOG_FILE" yaml:"file"`
	Capacity int    `env:"AUDIT_LOG_CAPACITY,default=500" yaml:"capacity"`
}

// Load reads .env (if present), decodes the environment and applies the YAML
// overlay named by SERVICEHUB_CONFIG.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv decodes defaults and environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// ApplyFile overlays the YAML document at path onto cfg.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "" || env == "development" || env == "dev" || env == "test"
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.Auth.JWTSecret = "servicehub-dev-secret"
	}
	if len(c.Auth.JWTSecret) < 16 && !c.IsDevelopment() {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth token ttl must be positive")
	}
	if c.Polling.WatchInterval <= 0 {
		c.Polling.WatchInterval = 5 * time.Second
	}
	if c.Polling.LLRInterval <= 0 {
		return errors.New("llr poll interval must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.Audit.Capacity <= 0 {
		c.Audit.Capacity = 500
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AllowedOrigins splits the CORS origin list.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.Server.CORSOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TrustedProxies splits the trusted proxy list.
func (c *Config) TrustedProxies() []string {
	return splitList(c.RateLimit.TrustedProxies)
}

// UseMemoryStore reports whether no database is configured.
func (c *Config) UseMemoryStore() bool {
	return strings.TrimSpace(c.Database.DSN) == ""
}
