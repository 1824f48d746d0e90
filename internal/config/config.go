// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the telephony gateway,
// automation thresholds, scheduler cadences, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "tradietrack-sms")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GatewayConfig carries telephony provider credentials. When incomplete, the
// app falls back to a simulator outside production and to a failing stub in
// production.
type GatewayConfig struct {
	AccountSID string // TWILIO_ACCOUNT_SID
	AuthToken  string // TWILIO_AUTH_TOKEN
	FromNumber string // TWILIO_FROM_NUMBER
	BaseURL    string // TWILIO_BASE_URL (override for tests/proxies)
}

// Configured reports whether every credential required to reach the real
// provider is present.
func (g GatewayConfig) Configured() bool {
	return g.AccountSID != "" && g.AuthToken != "" && g.FromNumber != ""
}

// AutomationConfig tunes the rule engine's trigger thresholds.
type AutomationConfig struct {
	QuoteFollowUpAfter time.Duration // quote stalls after this long in "sent"
	InvoiceGrace       time.Duration // overdue this long before reminding
}

// SchedulerConfig sets the cadence of each background pass.
type SchedulerConfig struct {
	Stagger            time.Duration // delay before each task's first run
	AutomationInterval time.Duration // rule engine pass
	ArchiveInterval    time.Duration // idle-conversation archival pass
	ArchiveAfter       time.Duration // idle threshold before archiving
	ReconcileInterval  time.Duration // stale-pending reconciliation pass
	ReconcileAfter     time.Duration // pending age before reconciling
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	Environment  string // development|production|test
	DBPath       string // SQLite path
	CountryCode  string // dialing plan for phone normalization, e.g. "+61"
	BusinessName string // sender identity used in quick action templates
	Timezone     string // IANA zone for local time formatting; "Local" ok
	MaxSMSRunes  int    // outbound body cap

	// Telephony
	Gateway GatewayConfig

	// Automation & scheduling
	Automation AutomationConfig
	Scheduler  SchedulerConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// Production reports whether the app runs with real-world side effects.
func (c Config) Production() bool { return c.Environment == "production" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		Environment:  strings.ToLower(getenv("ENVIRONMENT", "development")),
		DBPath:       getenv("DB_PATH", "app.db"),
		CountryCode:  getenv("SMS_COUNTRY_CODE", "+61"),
		BusinessName: getenv("BUSINESS_NAME", "TradieTrack"),
		Timezone:     getenv("TIMEZONE", "Local"),
		MaxSMSRunes:  getint("MAX_SMS_RUNES", 1600),

		// Telephony
		Gateway: GatewayConfig{
			AccountSID: getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getenv("TWILIO_FROM_NUMBER", ""),
			BaseURL:    getenv("TWILIO_BASE_URL", ""),
		},

		// Automation & scheduling
		Automation: AutomationConfig{
			QuoteFollowUpAfter: getdur("QUOTE_FOLLOWUP_AFTER", 72*time.Hour),
			InvoiceGrace:       getdur("INVOICE_GRACE", 24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			Stagger:            getdur("SCHEDULER_STAGGER", 5*time.Second),
			AutomationInterval: getdur("AUTOMATION_INTERVAL", time.Hour),
			ArchiveInterval:    getdur("ARCHIVE_INTERVAL", 24*time.Hour),
			ArchiveAfter:       getdur("ARCHIVE_AFTER", 90*24*time.Hour),
			ReconcileInterval:  getdur("RECONCILE_INTERVAL", 15*time.Minute),
			ReconcileAfter:     getdur("RECONCILE_AFTER", 10*time.Minute),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "tradietrack-sms"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if !strings.HasPrefix(cfg.CountryCode, "+") {
		cfg.CountryCode = "+" + cfg.CountryCode
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.Environment {
	case "development", "production", "test":
	default:
		return cfg, errors.New("ENVIRONMENT must be one of: development, production, test")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if len(strings.TrimPrefix(cfg.CountryCode, "+")) == 0 {
		return cfg, errors.New("SMS_COUNTRY_CODE must contain digits")
	}
	if cfg.MaxSMSRunes <= 0 {
		return cfg, errors.New("MAX_SMS_RUNES must be > 0")
	}
	if cfg.Automation.QuoteFollowUpAfter <= 0 || cfg.Automation.InvoiceGrace <= 0 {
		return cfg, errors.New("automation thresholds must be positive durations")
	}
	if cfg.Scheduler.AutomationInterval <= 0 || cfg.Scheduler.ArchiveInterval <= 0 || cfg.Scheduler.ReconcileInterval <= 0 {
		return cfg, errors.New("scheduler intervals must be positive durations")
	}
	if cfg.Scheduler.ArchiveAfter <= 0 || cfg.Scheduler.ReconcileAfter <= 0 {
		return cfg, errors.New("scheduler thresholds must be positive durations")
	}
	if cfg.Scheduler.Stagger < 0 {
		return cfg, errors.New("SCHEDULER_STAGGER must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
