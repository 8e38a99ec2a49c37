package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"reccal/internal/atomicfile"
	"reccal/internal/calendar"
	"reccal/internal/recurrence"
)

const (
	defaultListen                = "127.0.0.1:8080"
	defaultTimezone              = "Local"
	defaultWeekStart             = "sunday"
	defaultMaxOccurrencesPerRule = 5000
	defaultStorePath             = "./var/events.json"
	defaultCacheDir              = "./var/ics-cache"
	defaultRefreshCron           = "*/15 * * * *"
	defaultRateLimitPerMinute    = 120
	defaultLogLevel              = "info"
)

// SubscriptionConfig describes a single ICS subscription source.
type SubscriptionConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID prefixes the ids of imported events and tags them as their source.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
// PasswordHash (bcrypt) takes precedence over Password when both are set.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password,omitempty" json:"-"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone query dates are read in (e.g. "Asia/Seoul").
	// "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday starts a week in calendar grids and
	// in weekday-constrained weekly rules. Supported values:
	//   - "sunday" (default)
	//   - "monday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// MaxOccurrencesPerRule caps how many occurrences a single inclusion
	// rule may produce per query.
	MaxOccurrencesPerRule int `yaml:"max_occurrences_per_rule" json:"max_occurrences_per_rule"`

	// StorePath is the JSON file holding the event list.
	StorePath string `yaml:"store_path" json:"store_path"`

	// CacheDir holds the ETag cache of fetched subscriptions.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for subscription sync.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Subscriptions is the list of subscribed ICS sources.
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// RateLimitPerMinute is the per-client request budget. Zero disables
	// rate limiting.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                defaultListen,
		Timezone:              defaultTimezone,
		WeekStart:             defaultWeekStart,
		MaxOccurrencesPerRule: defaultMaxOccurrencesPerRule,
		StorePath:             defaultStorePath,
		CacheDir:              defaultCacheDir,
		RefreshCron:           defaultRefreshCron,
		Subscriptions:         []SubscriptionConfig{},
		CORSOrigins:           []string{},
		RateLimitPerMinute:    defaultRateLimitPerMinute,
		LogLevel:              defaultLogLevel,
		BasicAuth:             nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to sunday to avoid surprising layouts.
		c.WeekStart = defaultWeekStart
	}
	if c.MaxOccurrencesPerRule <= 0 {
		c.MaxOccurrencesPerRule = defaultMaxOccurrencesPerRule
	}
	if c.StorePath == "" {
		c.StorePath = defaultStorePath
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
	if c.RateLimitPerMinute < 0 {
		c.RateLimitPerMinute = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	seen := map[string]bool{}
	for i, s := range c.Subscriptions {
		switch {
		case s.ID == "":
			errs = append(errs, fmt.Errorf("subscriptions[%d]: id is empty", i))
		case seen[s.ID]:
			errs = append(errs, fmt.Errorf("subscriptions[%d]: duplicate id %q", i, s.ID))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("subscriptions[%d]: url is empty", i))
		}
		seen[s.ID] = true
	}
	if a := c.BasicAuth; a != nil && (a.Username == "" || (a.Password == "" && a.PasswordHash == "")) {
		errs = append(errs, errors.New("basic_auth: username and password or password_hash are required"))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Calendar builds the calendar the API renders grids with.
func (c *Config) Calendar() calendar.Calendar {
	loc, err := c.Location()
	if err != nil {
		loc = time.Local
	}
	return calendar.Calendar{WeekStart: c.WeekStartDay(), Location: loc}
}

// ExpandOptions builds the expansion options for queries.
func (c *Config) ExpandOptions() recurrence.Options {
	opts := recurrence.DefaultOptions()
	opts.WeekStart = c.WeekStartDay()
	if c.MaxOccurrencesPerRule > 0 {
		opts.MaxOccurrencesPerRule = c.MaxOccurrencesPerRule
	}
	return opts
}

// ApplyEnv overrides fields from RECCAL_* environment variables. When
// envFile names an existing file it is loaded first; variables already set
// in the process environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("RECCAL_" + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv("RECCAL_" + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECCAL_%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("LISTEN", &c.Listen)
	str("TIMEZONE", &c.Timezone)
	str("WEEK_START", &c.WeekStart)
	str("STORE_PATH", &c.StorePath)
	str("CACHE_DIR", &c.CacheDir)
	str("REFRESH", &c.RefreshCron)
	str("LOG_LEVEL", &c.LogLevel)
	if err := num("MAX_OCCURRENCES_PER_RULE", &c.MaxOccurrencesPerRule); err != nil {
		return err
	}
	if err := num("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute); err != nil {
		return err
	}

	var auth BasicAuthConfig
	if c.BasicAuth != nil {
		auth = *c.BasicAuth
	}
	str("BASIC_AUTH_USERNAME", &auth.Username)
	str("BASIC_AUTH_PASSWORD", &auth.Password)
	str("BASIC_AUTH_PASSWORD_HASH", &auth.PasswordHash)
	if auth != (BasicAuthConfig{}) {
		c.BasicAuth = &auth
	}

	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path as YAML, atomically and with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
