package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// InitiateLimit caps payment initiations per user per minute.
	InitiateLimit int `yaml:"initiate_limit"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// StorageConfig points at an S3-compatible store. Buckets maps the logical
// names used in stored paths (uploads, imageBank, public) to physical buckets.
type StorageConfig struct {
	Endpoint     string            `yaml:"endpoint"`
	Region       string            `yaml:"region"`
	AccessKey    string            `yaml:"access_key"`
	SecretKey    string            `yaml:"secret_key"`
	UsePathStyle bool              `yaml:"use_path_style"`
	Buckets      map[string]string `yaml:"buckets"`
	SignTTL      time.Duration     `yaml:"sign_ttl"`
	FetchTimeout time.Duration     `yaml:"fetch_timeout"`
}

type MpesaConfig struct {
	BaseURL        string        `yaml:"base_url"` // https://sandbox.safaricom.co.ke
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	ShortCode      string        `yaml:"short_code"`
	Passkey        string        `yaml:"passkey"`
	CallbackURL    string        `yaml:"callback_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Configured reports whether real gateway credentials are present.
func (m MpesaConfig) Configured() bool {
	return m.ConsumerKey != "" && m.ConsumerSecret != "" && m.ShortCode != "" && m.Passkey != ""
}

type FulfillmentConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseBackoff  time.Duration `yaml:"base_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	StuckAfter   time.Duration `yaml:"stuck_after"`
}

type ReconcilerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	AbandonAfter time.Duration `yaml:"abandon_after"`
	BatchSize    int           `yaml:"batch_size"`
}

type SubscriptionConfig struct {
	VIPPrice       string        `yaml:"vip_price"`
	IntervalDays   int           `yaml:"interval_days"`
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

type AppConfig struct {
	PublicBaseURL    string `yaml:"public_base_url"`    // where /images/... is served from
	TicketVerifyBase string `yaml:"ticket_verify_base"` // QR payload prefix for tickets
	QRSize           int    `yaml:"qr_size"`
}

type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Storage      StorageConfig      `yaml:"storage"`
	Mpesa        MpesaConfig        `yaml:"mpesa"`
	Fulfillment  FulfillmentConfig  `yaml:"fulfillment"`
	Reconciler   ReconcilerConfig   `yaml:"reconciler"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Auth         AuthConfig         `yaml:"auth"`
	Admin        AdminConfig        `yaml:"admin"`
	App          AppConfig          `yaml:"app"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads an optional .env, the YAML file at path, then lets the
// environment override secrets.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.App.PublicBaseURL == "" {
		return nil, errors.New("app.public_base_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("DATABASE_URL", &cfg.Database.URL)
	envStr("REDIS_URL", &cfg.Redis.URL)
	envStr("REDIS_PASSWORD", &cfg.Redis.Password)
	envStr("S3_ENDPOINT", &cfg.Storage.Endpoint)
	envStr("S3_REGION", &cfg.Storage.Region)
	envStr("S3_ACCESS_KEY", &cfg.Storage.AccessKey)
	envStr("S3_SECRET_KEY", &cfg.Storage.SecretKey)
	envStr("MPESA_BASE_URL", &cfg.Mpesa.BaseURL)
	envStr("MPESA_CONSUMER_KEY", &cfg.Mpesa.ConsumerKey)
	envStr("MPESA_CONSUMER_SECRET", &cfg.Mpesa.ConsumerSecret)
	envStr("MPESA_SHORTCODE", &cfg.Mpesa.ShortCode)
	envStr("MPESA_PASSKEY", &cfg.Mpesa.Passkey)
	envStr("MPESA_CALLBACK_URL", &cfg.Mpesa.CallbackURL)
	envStr("JWT_SECRET", &cfg.Auth.JWTSecret)
	envStr("ADMIN_API_KEY", &cfg.Admin.APIKey)
	envStr("PUBLIC_BASE_URL", &cfg.App.PublicBaseURL)
}

func envStr(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.InitiateLimit <= 0 {
		cfg.HTTP.InitiateLimit = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.SignTTL <= 0 {
		cfg.Storage.SignTTL = 60 * time.Second
	}
	if cfg.Storage.FetchTimeout <= 0 {
		cfg.Storage.FetchTimeout = 15 * time.Second
	}
	if cfg.Storage.Buckets == nil {
		cfg.Storage.Buckets = map[string]string{}
	}

	if cfg.Mpesa.BaseURL == "" {
		cfg.Mpesa.BaseURL = "https://sandbox.safaricom.co.ke"
	}
	if cfg.Mpesa.Timeout <= 0 {
		cfg.Mpesa.Timeout = 15 * time.Second
	}
	cfg.App.PublicBaseURL = strings.TrimRight(cfg.App.PublicBaseURL, "/")
	if cfg.Mpesa.CallbackURL == "" && cfg.App.PublicBaseURL != "" {
		cfg.Mpesa.CallbackURL = cfg.App.PublicBaseURL + "/payments/mpesa/webhook"
	}
	if cfg.App.TicketVerifyBase == "" && cfg.App.PublicBaseURL != "" {
		cfg.App.TicketVerifyBase = cfg.App.PublicBaseURL + "/tickets/verify"
	}
	if cfg.App.QRSize <= 0 {
		cfg.App.QRSize = 256
	}

	if cfg.Fulfillment.Workers <= 0 {
		cfg.Fulfillment.Workers = 4
	}
	if cfg.Fulfillment.PollInterval <= 0 {
		cfg.Fulfillment.PollInterval = 5 * time.Second
	}
	if cfg.Fulfillment.BatchSize <= 0 {
		cfg.Fulfillment.BatchSize = 20
	}
	if cfg.Fulfillment.MaxAttempts <= 0 {
		cfg.Fulfillment.MaxAttempts = 8
	}
	if cfg.Fulfillment.BaseBackoff <= 0 {
		cfg.Fulfillment.BaseBackoff = 10 * time.Second
	}
	if cfg.Fulfillment.MaxBackoff <= 0 {
		cfg.Fulfillment.MaxBackoff = 30 * time.Minute
	}
	if cfg.Fulfillment.StuckAfter <= 0 {
		cfg.Fulfillment.StuckAfter = 5 * time.Minute
	}

	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 2 * time.Minute
	}
	if cfg.Reconciler.AbandonAfter <= 0 {
		cfg.Reconciler.AbandonAfter = 24 * time.Hour
	}
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 100
	}

	if cfg.Subscription.VIPPrice == "" {
		cfg.Subscription.VIPPrice = "2000"
	}
	if cfg.Subscription.IntervalDays <= 0 {
		cfg.Subscription.IntervalDays = 30
	}
	if cfg.Subscription.ExpiryInterval <= 0 {
		cfg.Subscription.ExpiryInterval = time.Hour
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
