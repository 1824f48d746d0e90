package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// App
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("SMS_COUNTRY_CODE", "64") // missing '+' -> normalized to "+64"
	t.Setenv("BUSINESS_NAME", "Spark & Sons")
	t.Setenv("TIMEZONE", "Australia/Sydney")
	t.Setenv("MAX_SMS_RUNES", "320")

	// Telephony
	t.Setenv("TWILIO_ACCOUNT_SID", "ACxxxx")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_FROM_NUMBER", "+61400000000")

	// Automation & scheduling
	t.Setenv("QUOTE_FOLLOWUP_AFTER", "48h")
	t.Setenv("INVOICE_GRACE", "12h")
	t.Setenv("SCHEDULER_STAGGER", "1s")
	t.Setenv("AUTOMATION_INTERVAL", "30m")
	t.Setenv("ARCHIVE_INTERVAL", "12h")
	t.Setenv("ARCHIVE_AFTER", "720h")
	t.Setenv("RECONCILE_INTERVAL", "5m")
	t.Setenv("RECONCILE_AFTER", "3m")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// Idempotency
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging fields unexpected: %+v", cfg)
	}

	// App
	if cfg.Environment != "production" || !cfg.Production() {
		t.Fatalf("environment unexpected: %+v", cfg)
	}
	if cfg.DBPath != "db.sqlite" || cfg.CountryCode != "+64" || cfg.BusinessName != "Spark & Sons" ||
		cfg.Timezone != "Australia/Sydney" || cfg.MaxSMSRunes != 320 {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	// Telephony
	if cfg.Gateway.AccountSID != "ACxxxx" || cfg.Gateway.AuthToken != "secret" || cfg.Gateway.FromNumber != "+61400000000" {
		t.Fatalf("gateway fields unexpected: %+v", cfg.Gateway)
	}

	// Automation & scheduling
	if cfg.Automation.QuoteFollowUpAfter != 48*time.Hour || cfg.Automation.InvoiceGrace != 12*time.Hour {
		t.Fatalf("automation thresholds unexpected: %+v", cfg.Automation)
	}
	if cfg.Scheduler.Stagger != time.Second ||
		cfg.Scheduler.AutomationInterval != 30*time.Minute ||
		cfg.Scheduler.ArchiveInterval != 12*time.Hour ||
		cfg.Scheduler.ArchiveAfter != 720*time.Hour ||
		cfg.Scheduler.ReconcileInterval != 5*time.Minute ||
		cfg.Scheduler.ReconcileAfter != 3*time.Minute {
		t.Fatalf("scheduler fields unexpected: %+v", cfg.Scheduler)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// Idempotency
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("invalid LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := Load(); err == nil {
			t.Fatalf("expected LOG_LEVEL validation error")
		}
	})
	t.Run("invalid ENVIRONMENT", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "staging")
		if _, err := Load(); err == nil || !containsErr(err, "ENVIRONMENT") {
			t.Fatalf("expected ENVIRONMENT validation error, got: %v", err)
		}
	})
	t.Run("empty PORT via spaces", func(t *testing.T) {
		t.Setenv("PORT", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "PORT must not be empty") {
			t.Fatalf("expected port validation error, got: %v", err)
		}
	})
	t.Run("non-positive timeouts", func(t *testing.T) {
		t.Setenv("READ_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "timeouts must be positive") {
			t.Fatalf("expected timeouts validation error, got: %v", err)
		}
	})
	t.Run("max header bytes <= 0", func(t *testing.T) {
		t.Setenv("MAX_HEADER_BYTES", "0")
		if _, err := Load(); err == nil || !containsErr(err, "MAX_HEADER_BYTES") {
			t.Fatalf("expected MAX_HEADER_BYTES validation error, got: %v", err)
		}
	})
	t.Run("empty DB_PATH", func(t *testing.T) {
		t.Setenv("DB_PATH", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "DB_PATH must not be empty") {
			t.Fatalf("expected DB_PATH validation error, got: %v", err)
		}
	})
	t.Run("country code without digits", func(t *testing.T) {
		t.Setenv("SMS_COUNTRY_CODE", "+")
		if _, err := Load(); err == nil || !containsErr(err, "SMS_COUNTRY_CODE") {
			t.Fatalf("expected SMS_COUNTRY_CODE validation error, got: %v", err)
		}
	})
	t.Run("sms rune cap <= 0", func(t *testing.T) {
		t.Setenv("MAX_SMS_RUNES", "0")
		if _, err := Load(); err == nil || !containsErr(err, "MAX_SMS_RUNES") {
			t.Fatalf("expected MAX_SMS_RUNES validation error, got: %v", err)
		}
	})
	t.Run("automation threshold non-positive", func(t *testing.T) {
		t.Setenv("QUOTE_FOLLOWUP_AFTER", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "automation thresholds") {
			t.Fatalf("expected automation threshold validation error, got: %v", err)
		}
	})
	t.Run("scheduler interval non-positive", func(t *testing.T) {
		t.Setenv("AUTOMATION_INTERVAL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "scheduler intervals") {
			t.Fatalf("expected scheduler interval validation error, got: %v", err)
		}
	})
	t.Run("scheduler threshold non-positive", func(t *testing.T) {
		t.Setenv("RECONCILE_AFTER", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "scheduler thresholds") {
			t.Fatalf("expected scheduler threshold validation error, got: %v", err)
		}
	})
	t.Run("negative stagger", func(t *testing.T) {
		t.Setenv("SCHEDULER_STAGGER", "-1s")
		if _, err := Load(); err == nil || !containsErr(err, "SCHEDULER_STAGGER") {
			t.Fatalf("expected SCHEDULER_STAGGER validation error, got: %v", err)
		}
	})
	t.Run("rate rps negative", func(t *testing.T) {
		t.Setenv("RATE_RPS", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_RPS") {
			t.Fatalf("expected RATE_RPS validation error, got: %v", err)
		}
	})
	t.Run("rate burst < 1", func(t *testing.T) {
		t.Setenv("RATE_BURST", "0")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_BURST") {
			t.Fatalf("expected RATE_BURST validation error, got: %v", err)
		}
	})
	t.Run("hsts max age negative", func(t *testing.T) {
		t.Setenv("HSTS_MAX_AGE", "-1s")
		if _, err := Load(); err == nil || !containsErr(err, "HSTS_MAX_AGE") {
			t.Fatalf("expected HSTS_MAX_AGE validation error, got: %v", err)
		}
	})
	t.Run("idempotency ttl non-positive", func(t *testing.T) {
		t.Setenv("IDEMPOTENCY_TTL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "IDEMPOTENCY_TTL") {
			t.Fatalf("expected IDEMPOTENCY_TTL validation error, got: %v", err)
		}
	})
	t.Run("otel sample ratio out of range", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
		if _, err := Load(); err == nil || !containsErr(err, "OTEL_TRACES_SAMPLER_ARG") {
			t.Fatalf("expected OTEL_TRACES_SAMPLER_ARG validation error, got: %v", err)
		}
	})
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + envKeySuffix(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + envKeySuffix(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}

	// normalizeBasePath
	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

// small helper (avoid fmt just for ints)
func envKeySuffix(i int) string { return string('a' + rune(i)) }

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
	if cfg.Environment != "development" || cfg.Production() {
		t.Fatalf("expected development default, got %q", cfg.Environment)
	}
	if cfg.CountryCode != "+61" {
		t.Fatalf("expected default country code +61, got %q", cfg.CountryCode)
	}
	if cfg.Gateway.Configured() {
		t.Fatalf("gateway should be unconfigured by default")
	}
	if cfg.Scheduler.AutomationInterval != time.Hour || cfg.Scheduler.ArchiveAfter != 90*24*time.Hour {
		t.Fatalf("scheduler defaults unexpected: %+v", cfg.Scheduler)
	}
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	// No special env needed; defaults are valid.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}
