package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Duration wraps time.Duration so thresholds can be written as "24h" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Greeting configures the automated opening message. If Template is set it
// wins over Text; otherwise Text is sent as a plain message.
type Greeting struct {
	Text           string   `toml:"text"`
	Template       string   `toml:"template"`
	TemplateLocale string   `toml:"template_locale"`
	TemplateParams []string `toml:"template_params"`
}

// Config represents ~/.wabot/config.toml.
type Config struct {
	ListenAddr    string   `toml:"listen_addr"`
	VerifyToken   string   `toml:"verify_token"`
	AccessToken   string   `toml:"access_token"`
	AppSecret     string   `toml:"app_secret"`
	PhoneNumberID string   `toml:"phone_number_id"`
	GraphBaseURL  string   `toml:"graph_base_url"`
	IdleThreshold Duration `toml:"idle_threshold"`
	Greeting      Greeting `toml:"greeting"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		ListenAddr:    ":8080",
		GraphBaseURL:  "https://graph.facebook.com/v20.0",
		IdleThreshold: Duration{24 * time.Hour},
		Greeting: Greeting{
			Text: "Hello! How can we help you today?",
		},
	}
}

// Load reads config from the given path, starting from defaults. A missing
// file is not an error; secrets may also arrive via WABOT_* environment
// variables (and a local .env file), which win over file values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	_ = godotenv.Load()
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WABOT_VERIFY_TOKEN"); v != "" {
		cfg.VerifyToken = v
	}
	if v := os.Getenv("WABOT_ACCESS_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("WABOT_APP_SECRET"); v != "" {
		cfg.AppSecret = v
	}
	if v := os.Getenv("WABOT_PHONE_NUMBER_ID"); v != "" {
		cfg.PhoneNumberID = v
	}
	if v := os.Getenv("WABOT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
}

// Validate checks that the fields required to talk to the platform are set.
func (c *Config) Validate() error {
	if c.VerifyToken == "" {
		return errors.New("verify_token is required")
	}
	if c.AccessToken == "" {
		return errors.New("access_token is required")
	}
	if c.PhoneNumberID == "" {
		return errors.New("phone_number_id is required")
	}
	if c.IdleThreshold.Duration <= 0 {
		return errors.New("idle_threshold must be positive")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
