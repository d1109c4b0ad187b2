// Package config loads the runtime configuration from config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything one invocation needs. It is passed explicitly into
// the wiring; there is no process-wide singleton.
type Config struct {
	Triggers   []string          `yaml:"triggers"`
	LLM        LLMConfig         `yaml:"llm"`
	Twitter    TwitterConfig     `yaml:"twitter"`
	Style      StyleConfig       `yaml:"style"`
	Storage    StorageConfig     `yaml:"storage"`
	Logging    LoggingConfig     `yaml:"logging"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Watch      WatchConfig       `yaml:"watch"`
	Transports []TransportConfig `yaml:"transports"`
}

// LLMConfig controls the generation backend.
type LLMConfig struct {
	APIBase        string `yaml:"api_base"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TwitterConfig controls the publish backend. Publishing is available only
// when all four credentials are present.
type TwitterConfig struct {
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
	APIBase           string `yaml:"api_base"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// Configured reports whether the full credential set is present.
func (t TwitterConfig) Configured() bool {
	return t.ConsumerKey != "" && t.ConsumerSecret != "" && t.AccessToken != "" && t.AccessTokenSecret != ""
}

// partial reports a credential set that is started but incomplete.
func (t TwitterConfig) partial() bool {
	any := t.ConsumerKey != "" || t.ConsumerSecret != "" || t.AccessToken != "" || t.AccessTokenSecret != ""
	return any && !t.Configured()
}

// StyleConfig is the reply style policy; it is data, not logic.
type StyleConfig struct {
	Directive          string   `yaml:"directive"`
	MinChars           int      `yaml:"min_chars"`
	MaxChars           int      `yaml:"max_chars"`
	RequiredTrailer    string   `yaml:"required_trailer"`
	Hashtags           []string `yaml:"hashtags"`
	DisallowedPrefixes []string `yaml:"disallowed_prefixes"`
	// OnLengthViolation is "reject" (default) or "truncate".
	OnLengthViolation string `yaml:"on_length_violation"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log level and the failure log destination.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// FailureLog is the file failure records go to; empty means stderr.
	FailureLog string `yaml:"failure_log"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	AllowedSenders []string `yaml:"allowed_senders"`
	RunTimeoutSecs int      `yaml:"run_timeout_seconds"`
	// DedupWindowSecs suppresses redelivered same-sender/same-body messages
	// inside the window.
	DedupWindowSecs int `yaml:"dedup_window_seconds"`
}

// TransportConfig declares one inbound source for watch mode.
type TransportConfig struct {
	Type string `yaml:"type"` // nostr | email

	// nostr
	Relays         []string `yaml:"relays,omitempty"`
	PrivateKey     string   `yaml:"private_key,omitempty"`
	AllowedPubkeys []string `yaml:"allowed_pubkeys,omitempty"`

	// email
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Folder   string `yaml:"folder,omitempty"`
	SMTPHost string `yaml:"smtp_host,omitempty"`
	SMTPPort int    `yaml:"smtp_port,omitempty"`
}

// Load reads and validates configuration from the provided path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required (or set DASHSCOPE_API_KEY)")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if c.Twitter.partial() {
		return errors.New("twitter credentials incomplete: set all of consumer_key, consumer_secret, access_token, access_token_secret or none")
	}
	if c.Style.MinChars < 0 || c.Style.MaxChars <= 0 || c.Style.MinChars >= c.Style.MaxChars {
		return fmt.Errorf("style bounds invalid: min %d, max %d", c.Style.MinChars, c.Style.MaxChars)
	}
	switch c.Style.OnLengthViolation {
	case "reject", "truncate":
	default:
		return fmt.Errorf("style.on_length_violation must be reject or truncate, got %q", c.Style.OnLengthViolation)
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	for i, t := range c.Transports {
		switch t.Type {
		case "nostr":
			if t.PrivateKey == "" {
				return fmt.Errorf("transport %d: nostr private_key is required", i)
			}
			if len(t.Relays) == 0 {
				return fmt.Errorf("transport %d: at least one relay is required", i)
			}
		case "email":
			if t.Host == "" || t.Username == "" || t.Password == "" {
				return fmt.Errorf("transport %d: email host, username, password are required", i)
			}
		default:
			return fmt.Errorf("transport %d: unknown type %q", i, t.Type)
		}
	}
	return nil
}

func (c *Config) applyDefaults(baseDir string) {
	if len(c.Triggers) == 0 {
		c.Triggers = []string{"reply to this tweet", "reply tweet"}
	}

	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "qwen-max"
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 30
	}

	envFallback(&c.Twitter.ConsumerKey, "TWITTER_CONSUMER_KEY")
	envFallback(&c.Twitter.ConsumerSecret, "TWITTER_CONSUMER_SECRET")
	envFallback(&c.Twitter.AccessToken, "TWITTER_ACCESS_TOKEN")
	envFallback(&c.Twitter.AccessTokenSecret, "TWITTER_ACCESS_TOKEN_SECRET")
	if c.Twitter.TimeoutSeconds == 0 {
		c.Twitter.TimeoutSeconds = 30
	}

	if c.Style.MinChars == 0 {
		c.Style.MinChars = 80
	}
	if c.Style.MaxChars == 0 {
		c.Style.MaxChars = 280
	}
	if c.Style.OnLengthViolation == "" {
		c.Style.OnLengthViolation = "reject"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(baseDir, "state", "replyrunner.db")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Watch.RunTimeoutSecs == 0 {
		c.Watch.RunTimeoutSecs = 120
	}
	if c.Watch.DedupWindowSecs == 0 {
		c.Watch.DedupWindowSecs = 30
	}
	for i := range c.Watch.AllowedSenders {
		c.Watch.AllowedSenders[i] = strings.ToLower(c.Watch.AllowedSenders[i])
	}
}

func envFallback(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}
