package config

import (
	"strings"
	"testing"
	"time"
)

func localConfig() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV is required", "APP_PORT", "JWT_SECRET is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := localConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Dial.Timeout != 12*time.Second || c.Dial.Gap != 350*time.Millisecond {
		t.Fatalf("unexpected dial defaults %+v", c.Dial)
	}
	if c.Host.ConferenceAlias != "local" || c.Host.BaseURL != "" {
		t.Fatalf("expected dry-run host defaults, got %+v", c.Host)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute || c.Auth.RefreshTokenTTL != 12*time.Hour {
		t.Fatalf("unexpected ttl defaults %+v", c.Auth)
	}
	if c.Session.IdleTTL != 30*time.Minute || c.Session.MaxPerUser != 10 {
		t.Fatalf("unexpected session defaults %+v", c.Session)
	}
	if !c.AllowsTokenIssue() || c.DB.Enabled() || c.Redis.Enabled() {
		t.Fatalf("unexpected feature switches")
	}
}

func TestValidate_ProductionRequiresHostAndIssuer(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "production", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"HOST_API_URL is required in production", "JWT_ISSUER", "JWT_AUDIENCE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
	if c.AllowsTokenIssue() {
		t.Fatalf("production must not issue tokens")
	}
}

func TestValidate_HostRequiresAlias(t *testing.T) {
	c := localConfig()
	c.Host.BaseURL = "https://conf.example.com"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "HOST_CONFERENCE_ALIAS") {
		t.Fatalf("expected alias error, got %v", err)
	}
}

func TestValidate_DatabaseOptional(t *testing.T) {
	c := localConfig()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "dialout"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}

	bad := localConfig()
	bad.DB = DBConfig{Host: "localhost", Port: 5432, SSLMode: "maybe"}
	err := bad.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_USER") || !strings.Contains(err.Error(), "DB_SSLMODE must be one of") {
		t.Fatalf("expected db errors, got %v", err)
	}
}

func TestValidate_RejectsRelativeTargetsURL(t *testing.T) {
	c := localConfig()
	c.Targets.URL = "data/dial_targets.csv"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for relative url")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("TARGETS_FILE", "/etc/dialout/targets.csv")
	t.Setenv("DIAL_TIMEOUT", "5s")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,192.168.0.1")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTPAddr() != ":9090" || c.RedisAddr() != "redis:6379" {
		t.Fatalf("unexpected addrs %q %q", c.HTTPAddr(), c.RedisAddr())
	}
	if c.Dial.Timeout != 5*time.Second || c.Targets.File != "/etc/dialout/targets.csv" {
		t.Fatalf("unexpected config %+v", c)
	}
	if len(c.App.TrustedProxies) != 2 {
		t.Fatalf("unexpected proxies %v", c.App.TrustedProxies)
	}
}

func TestLoad_CollectsParseErrors(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "http")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DIAL_GAP", "soon")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "APP_PORT must be an integer") || !strings.Contains(err.Error(), "DIAL_GAP must be a duration") {
		t.Fatalf("expected both parse errors, got %v", err)
	}
}

func TestLoad_SessionLimits(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SESSION_IDLE_TTL", "5m")
	t.Setenv("SESSION_MAX_PER_USER", "3")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Session.IdleTTL != 5*time.Minute || c.Session.MaxPerUser != 3 {
		t.Fatalf("unexpected session config %+v", c.Session)
	}

	t.Setenv("SESSION_IDLE_TTL", "-1m")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SESSION_IDLE_TTL must not be negative") {
		t.Fatalf("expected negative ttl error, got %v", err)
	}
}
