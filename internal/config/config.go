package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-atelier/internal/pricing"
	"github.com/noah-isme/backend-atelier/internal/ratelimit"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	SecurityHeaders    bool

	DefaultCurrency pricing.Code
	ShippingBasis   pricing.ShippingBasis
	DefaultTaxRate  decimal.Decimal
	PriceListPath   string

	QuoteTTL         time.Duration
	IdempotencyTTL   time.Duration
	LockTTL          time.Duration
	LockRetryBackoff time.Duration
	LockMaxWait      time.Duration

	QueueRedisPrefix       string
	QueueMaxAttempts       int
	QueueVisibilityTimeout time.Duration
	QueueBackoffBase       time.Duration
	QueueBackoffJitter     float64
	WorkerConcurrency      int

	InvoiceBusinessName string

	RateLimitEnabled bool
	RateLimitBackend ratelimit.Backend
	RateLimitWindow  time.Duration
	RateLimitMax     int

	SubmissionWebhookURL    string
	SubmissionWebhookSecret string
	SubmissionTimeout       time.Duration
	BreakerMinRequests      int
	BreakerFailureRate      float64
	BreakerOpenFor          time.Duration

	Obs ObsConfig
}

// ObsConfig groups the logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders:    parseBool(k.String("SECURITY_HEADERS"), true),

		PriceListPath: strings.TrimSpace(k.String("CATALOG_PRICE_LIST")),

		QuoteTTL:         parseDuration(k.String("QUOTE_TTL"), "72h"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		LockMaxWait:      parseDuration(k.String("LOCK_MAX_WAIT"), "2s"),

		QueueRedisPrefix:       valueOrDefault(k.String("QUEUE_REDIS_PREFIX"), "atelier"),
		QueueMaxAttempts:       parseInt(k.String("QUEUE_MAX_ATTEMPTS"), 8),
		QueueVisibilityTimeout: parseDuration(k.String("QUEUE_VISIBILITY_TIMEOUT"), "30s"),
		QueueBackoffBase:       parseDuration(k.String("QUEUE_BACKOFF_BASE"), "2s"),
		QueueBackoffJitter:     parseFloat(k.String("QUEUE_BACKOFF_JITTER"), 0.2),
		WorkerConcurrency:      parseInt(k.String("WORKER_CONCURRENCY"), 2),

		InvoiceBusinessName: valueOrDefault(k.String("INVOICE_BUSINESS_NAME"), "Atelier"),

		RateLimitEnabled: parseBool(k.String("RATE_LIMIT_ENABLED"), true),
		RateLimitWindow:  parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:     parseInt(k.String("RATE_LIMIT_MAX"), 120),

		SubmissionWebhookURL:    strings.TrimSpace(k.String("SUBMISSION_WEBHOOK_URL")),
		SubmissionWebhookSecret: k.String("SUBMISSION_WEBHOOK_SECRET"),
		SubmissionTimeout:       parseDuration(k.String("SUBMISSION_TIMEOUT"), "5s"),
		BreakerMinRequests:      parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 5),
		BreakerFailureRate:      parseFloat(k.String("CIRCUIT_FAILURE_RATE"), 0.5),
		BreakerOpenFor:          parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),

		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "atelier"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	code, err := pricing.DefaultTable().ParseCode(valueOrDefault(k.String("PRICING_DEFAULT_CURRENCY"), string(pricing.USD)))
	if err != nil {
		return nil, fmt.Errorf("PRICING_DEFAULT_CURRENCY: %w", err)
	}
	cfg.DefaultCurrency = code

	basis, err := pricing.ParseShippingBasis(k.String("PRICING_SHIPPING_BASIS"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_SHIPPING_BASIS: %w", err)
	}
	cfg.ShippingBasis = basis

	rate, err := decimal.NewFromString(valueOrDefault(k.String("PRICING_DEFAULT_TAX_RATE"), "7.5"))
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("PRICING_DEFAULT_TAX_RATE must be a percentage between 0 and 100")
	}
	cfg.DefaultTaxRate = rate

	backend, err := ratelimit.ParseBackend(k.String("RATE_LIMIT_BACKEND"))
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND: %w", err)
	}
	cfg.RateLimitBackend = backend

	return cfg, nil
}

// ValidateWorker checks the keys only the submission worker needs.
func (c *Config) ValidateWorker() error {
	if c.SubmissionWebhookURL == "" {
		return errors.New("SUBMISSION_WEBHOOK_URL is required")
	}
	if c.SubmissionWebhookSecret == "" {
		return errors.New("SUBMISSION_WEBHOOK_SECRET is required")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && f >= 0 {
		return f
	}
	return fallback
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
