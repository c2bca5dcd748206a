package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the API process needs. Values come from the
// environment only; nothing else reads raw env vars.
type Config struct {
	App     AppConfig
	Targets TargetsConfig
	Host    HostConfig
	Dial    DialConfig
	Session SessionConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
}

type AppConfig struct {
	Env  string
	Port int

	// TrustedProxies are CIDRs whose X-Forwarded-For is believed for audit IPs.
	TrustedProxies []string
}

// TargetsConfig locates the tabular target resource. URL wins over File;
// with neither set the catalog serves the fallback list.
type TargetsConfig struct {
	URL          string
	File         string
	FallbackFile string
	FetchTimeout time.Duration
}

// HostConfig addresses the conference client API that performs dial-outs.
// An empty BaseURL selects the dry-run provider outside production.
type HostConfig struct {
	BaseURL         string
	ConferenceAlias string
	Token           string
	RequestTimeout  time.Duration
}

type DialConfig struct {
	Timeout time.Duration
	Gap     time.Duration
}

// SessionConfig bounds how many picker sessions stay in memory.
type SessionConfig struct {
	IdleTTL    time.Duration
	MaxPerUser int
}

// DBConfig is optional: an empty Host keeps the audit trail in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional: an empty Host uses an in-process batch lock.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var p envParser

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = p.int("APP_PORT")
	c.App.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	c.Targets.URL = strings.TrimSpace(os.Getenv("TARGETS_URL"))
	c.Targets.File = strings.TrimSpace(os.Getenv("TARGETS_FILE"))
	c.Targets.FallbackFile = strings.TrimSpace(os.Getenv("FALLBACK_TARGETS_FILE"))
	c.Targets.FetchTimeout = p.duration("TARGETS_FETCH_TIMEOUT")

	c.Host.BaseURL = strings.TrimSpace(os.Getenv("HOST_API_URL"))
	c.Host.ConferenceAlias = strings.TrimSpace(os.Getenv("HOST_CONFERENCE_ALIAS"))
	c.Host.Token = os.Getenv("HOST_API_TOKEN")
	c.Host.RequestTimeout = p.duration("HOST_REQUEST_TIMEOUT")

	c.Dial.Timeout = p.duration("DIAL_TIMEOUT")
	c.Dial.Gap = p.duration("DIAL_GAP")

	c.Session.IdleTTL = p.duration("SESSION_IDLE_TTL")
	c.Session.MaxPerUser = p.optionalInt("SESSION_MAX_PER_USER")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Host != "" {
		c.DB.Port = p.int("DB_PORT")
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		c.Redis.Port = p.int("REDIS_PORT")
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = p.duration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = p.duration("JWT_REFRESH_TTL")

	if err := joinErrors(p.errs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration and fills in defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !validPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Targets.URL != "" {
		if u, err := url.Parse(c.Targets.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("TARGETS_URL must be an absolute URL, got %q", c.Targets.URL))
		}
	}
	if c.Targets.FetchTimeout <= 0 {
		c.Targets.FetchTimeout = 10 * time.Second
	}

	if c.Host.BaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("HOST_API_URL is required in production"))
		}
	} else {
		if u, err := url.Parse(c.Host.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("HOST_API_URL must be an absolute URL, got %q", c.Host.BaseURL))
		}
		if c.Host.ConferenceAlias == "" {
			errs = append(errs, errors.New("HOST_CONFERENCE_ALIAS is required with HOST_API_URL"))
		}
		if c.IsProduction() && c.Host.Token == "" {
			errs = append(errs, errors.New("HOST_API_TOKEN is required in production"))
		}
	}
	if c.Host.ConferenceAlias == "" && !c.IsProduction() {
		// Dry-run default so local tokens still carry a conference.
		c.Host.ConferenceAlias = "local"
	}
	if c.Host.RequestTimeout <= 0 {
		c.Host.RequestTimeout = 15 * time.Second
	}

	if c.Dial.Timeout <= 0 {
		c.Dial.Timeout = 12 * time.Second
	}
	if c.Dial.Gap < 0 {
		errs = append(errs, fmt.Errorf("DIAL_GAP must not be negative, got %s", c.Dial.Gap))
	} else if c.Dial.Gap == 0 {
		c.Dial.Gap = 350 * time.Millisecond
	}

	if c.Session.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("SESSION_IDLE_TTL must not be negative, got %s", c.Session.IdleTTL))
	} else if c.Session.IdleTTL == 0 {
		c.Session.IdleTTL = 30 * time.Minute
	}
	if c.Session.MaxPerUser < 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_PER_USER must not be negative, got %d", c.Session.MaxPerUser))
	} else if c.Session.MaxPerUser == 0 {
		c.Session.MaxPerUser = 10
	}

	if c.DB.Enabled() {
		if !validPort(c.DB.Port) {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required with DB_HOST"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required with DB_HOST"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Redis.Enabled() && !validPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 12 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// AllowsTokenIssue reports whether the unauthenticated token endpoint is mounted.
func (c Config) AllowsTokenIssue() bool {
	return c.App.Env == "local" || c.App.Env == "dev"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (d DBConfig) Enabled() bool { return d.Host != "" }

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optionalInt returns 0 when key is unset; Validate applies defaults.
func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

// optionalDuration returns 0 when key is unset; Validate applies defaults.
func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

// envParser accumulates parse errors so Load reports them all at once.
type envParser struct {
	errs []error
}

func (p *envParser) int(key string) int {
	n, err := mustInt(key)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return n
}

func (p *envParser) optionalInt(key string) int {
	n, err := optionalInt(key)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return n
}

func (p *envParser) duration(key string) time.Duration {
	d, err := optionalDuration(key)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
