package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/umputun/pagewatch/pkg/content"
	"github.com/umputun/pagewatch/pkg/notify"
	"github.com/umputun/pagewatch/pkg/tracker"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// DefaultURL is the page watched if nothing else configured
const DefaultURL = "https://tkslok.pl/category/aktualnosci/"

// DefaultKeywords looked for if nothing else configured
var DefaultKeywords = []string{
	"uprawnienia",
	"prowadzącego",
	"strzelanie",
	"kurs",
}

// Config holds the application configuration
type Config struct {
	Page        PageConfig        `yaml:"page" json:"page" jsonschema:"description=Watched page configuration"`
	Keywords    []string          `yaml:"keywords" json:"keywords" jsonschema:"description=Keywords to look for (case-insensitive substrings)"`
	Webhook     WebhookConfig     `yaml:"webhook" json:"webhook" jsonschema:"description=Webhook notification configuration"`
	Schedule    ScheduleConfig    `yaml:"schedule" json:"schedule" jsonschema:"description=Poll schedule configuration"`
	Fingerprint FingerprintConfig `yaml:"fingerprint" json:"fingerprint" jsonschema:"description=Change detection configuration"`
	Server      ServerConfig      `yaml:"server" json:"server" jsonschema:"description=Optional status server configuration"`
}

// PageConfig defines the watched page and how to fetch it
type PageConfig struct {
	URL       string        `yaml:"url" json:"url" jsonschema:"description=URL of the watched page"`
	Mode      string        `yaml:"mode" json:"mode" jsonschema:"default=auto,enum=auto,enum=html,enum=article,enum=feed,description=Text extraction mode"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for page requests"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Page request timeout"`
	MaxSize   int64         `yaml:"max_size" json:"max_size" jsonschema:"default=10485760,description=Maximum page size in bytes"`
}

// WebhookConfig defines where and how alerts are sent
type WebhookConfig struct {
	URL      string        `yaml:"url" json:"url" jsonschema:"description=Webhook URL (can use environment variable)"`
	Format   string        `yaml:"format" json:"format" jsonschema:"default=discord,enum=discord,enum=text,description=Webhook payload format"`
	Username string        `yaml:"username" json:"username" jsonschema:"description=Bot name shown in discord messages"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Webhook request timeout"`
}

// ScheduleConfig defines poll timing
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval" jsonschema:"default=5m,description=Delay between the end of one check and the start of the next"`
}

// FingerprintConfig defines which content counts as new
type FingerprintConfig struct {
	Policy string `yaml:"policy" json:"policy" jsonschema:"default=full,enum=full,enum=context,enum=title,description=Part of the page compared between checks"`
	Window int    `yaml:"window" json:"window" jsonschema:"default=1000,minimum=1,description=Characters around each keyword used by context policy"`
}

// ServerConfig defines the optional status server
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"description=Status server listen address, disabled if empty"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Status server timeout"`
}

// Default returns configuration with all defaults set
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads configuration from a YAML file and sets defaults for missing values.
// The result is not validated, call Validate after applying overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// unknown keys are most likely typos, report but don't fail
	if err := VerifyKeys(expanded); err != nil {
		lgr.Printf("[WARN] config %s: %v", path, err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// SetDefaults fills empty values with defaults
func (c *Config) SetDefaults() {
	if c.Page.URL == "" {
		c.Page.URL = DefaultURL
	}
	if c.Page.Mode == "" {
		c.Page.Mode = string(content.ModeAuto)
	}
	if c.Page.UserAgent == "" {
		c.Page.UserAgent = content.DefaultUserAgent
	}
	if c.Page.Timeout == 0 {
		c.Page.Timeout = content.DefaultTimeout
	}
	if c.Page.MaxSize == 0 {
		c.Page.MaxSize = content.DefaultMaxSize
	}

	if len(c.Keywords) == 0 {
		c.Keywords = slices.Clone(DefaultKeywords)
	}

	if c.Webhook.Format == "" {
		c.Webhook.Format = string(notify.FormatDiscord)
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = notify.DefaultTimeout
	}

	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = 300 * time.Second
	}

	if c.Fingerprint.Policy == "" {
		c.Fingerprint.Policy = string(tracker.PolicyFull)
	}
	if c.Fingerprint.Window == 0 {
		c.Fingerprint.Window = tracker.DefaultWindow
	}

	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	if err := validateURL(c.Page.URL); err != nil {
		return fmt.Errorf("page.url: %w", err)
	}
	if _, err := content.ParseMode(c.Page.Mode); err != nil {
		return fmt.Errorf("page.mode: %w", err)
	}
	if c.Page.Timeout < time.Second {
		return errors.New("page.timeout must be at least 1 second")
	}
	if c.Page.MaxSize < 0 {
		return errors.New("page.max_size must be non-negative")
	}

	hasKeyword := slices.ContainsFunc(c.Keywords, func(s string) bool { return strings.TrimSpace(s) != "" })
	if !hasKeyword {
		return errors.New("at least one keyword is required")
	}

	if c.Webhook.URL == "" {
		return errors.New("webhook.url is required")
	}
	if err := validateURL(c.Webhook.URL); err != nil {
		return errors.New("webhook.url must be an absolute http(s) URL")
	}
	if _, err := notify.ParseFormat(c.Webhook.Format); err != nil {
		return fmt.Errorf("webhook.format: %w", err)
	}
	if c.Webhook.Timeout < time.Second {
		return errors.New("webhook.timeout must be at least 1 second")
	}

	if c.Schedule.Interval < time.Second {
		return errors.New("schedule.interval must be at least 1 second")
	}

	if _, err := tracker.ParsePolicy(c.Fingerprint.Policy); err != nil {
		return fmt.Errorf("fingerprint.policy: %w", err)
	}
	if c.Fingerprint.Window < 1 {
		return errors.New("fingerprint.window must be positive")
	}

	if c.Server.Listen != "" && c.Server.Timeout < time.Second {
		return errors.New("server.timeout must be at least 1 second")
	}
	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// validateURL checks for absolute http or https URL, error doesn't include the URL itself
// as it may carry secrets, like webhook tokens
func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("can't parse URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
