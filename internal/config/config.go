package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 3000
	defaultBaseURL          = "http://localhost:3000"
	defaultModel            = "gpt-4o"
	defaultTimeoutSec       = 30
	defaultCurrency         = "gbp"
	defaultUnitAmount       = 499
	defaultRateLimit        = 30
	defaultLetterTTLMinutes = 24 * 60
	defaultProductName      = "Deposit Defender - Full Letter Unlock"
	defaultProductDesc      = "Unlock your complete deposit dispute letter with statutory references"
)

// ErrMissingCredential marks a required credential that is absent. It is a
// configuration error, never a transient one.
var ErrMissingCredential = errors.New("credential is not configured")

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	AI      AIConfig      `yaml:"ai"`
	Payment PaymentConfig `yaml:"payment"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds the HTTP service settings
type ServerConfig struct {
	Port               int    `yaml:"port"`
	BaseURL            string `yaml:"base_url"`      // Public URL used for payment return links
	CookieSecret       string `yaml:"cookie_secret"` // Signs the paid-flag cookie; random per process if empty
	CSRF               bool   `yaml:"csrf"`          // Enable CSRF protection on mutating routes
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	LetterTTLMinutes   int    `yaml:"letter_ttl_minutes"` // How long drafted letters stay retrievable
}

// AIConfig holds the generative drafting backend settings
type AIConfig struct {
	Provider   string `yaml:"provider"` // "openai" or "" (heuristic only)
	APIKey     string `yaml:"api_key,omitempty"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url,omitempty"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type PaymentConfig struct {
	Provider           string `yaml:"provider"` // "stripe"
	SecretKey          string `yaml:"secret_key,omitempty"`
	Currency           string `yaml:"currency"`
	UnitAmount         int64  `yaml:"unit_amount"` // Minor units (pence)
	ProductName        string `yaml:"product_name"`
	ProductDescription string `yaml:"product_description"`
	APIURL             string `yaml:"api_url,omitempty"` // Override for the provider API endpoint
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".defender", "config.yaml")
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "defender.db"
	}
	return filepath.Join(home, ".defender", "history.db")
}

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.Server.CSRF = true
	cfg.AI.Provider = "openai"
	cfg.Payment.Provider = "stripe"
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a config file. A missing file is not an error: defaults are
// returned so the service can run from environment variables alone.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaultBaseURL
	}
	if c.Server.RateLimitPerMinute == 0 {
		c.Server.RateLimitPerMinute = defaultRateLimit
	}
	if c.Server.LetterTTLMinutes == 0 {
		c.Server.LetterTTLMinutes = defaultLetterTTLMinutes
	}

	if c.AI.Model == "" {
		c.AI.Model = defaultModel
	}
	if c.AI.TimeoutSec == 0 {
		c.AI.TimeoutSec = defaultTimeoutSec
	}

	if c.Payment.Currency == "" {
		c.Payment.Currency = defaultCurrency
	}
	if c.Payment.UnitAmount == 0 {
		c.Payment.UnitAmount = defaultUnitAmount
	}
	if c.Payment.ProductName == "" {
		c.Payment.ProductName = defaultProductName
	}
	if c.Payment.ProductDescription == "" {
		c.Payment.ProductDescription = defaultProductDesc
	}

	if c.Storage.DBPath == "" {
		c.Storage.DBPath = DefaultDBPath()
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d is out of range", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server: base_url is required")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server: rate_limit_per_minute must not be negative")
	}

	switch c.AI.Provider {
	case "", "openai":
	default:
		return fmt.Errorf("ai: unknown provider %q (only openai is supported)", c.AI.Provider)
	}

	switch c.Payment.Provider {
	case "", "stripe":
	default:
		return fmt.Errorf("payment: unknown provider %q (only stripe is supported)", c.Payment.Provider)
	}
	if c.Payment.UnitAmount < 0 {
		return fmt.Errorf("payment: unit_amount must not be negative")
	}

	return nil
}

// ValidateAI reports whether the drafting backend credential is present
func (c *Config) ValidateAI() error {
	if c.AI.Provider == "" {
		return fmt.Errorf("AI drafting: %w", ErrMissingCredential)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingCredential)
	}
	return nil
}

// ValidatePayment reports whether the payment provider credential is present
func (c *Config) ValidatePayment() error {
	if c.Payment.Provider == "" {
		return fmt.Errorf("Checkout: %w", ErrMissingCredential)
	}
	if c.Payment.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY: %w", ErrMissingCredential)
	}
	return nil
}
