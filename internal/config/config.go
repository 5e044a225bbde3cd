package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides:
// APP_SEGMENT_WRITE_KEY -> segment_write_key.
const EnvPrefix = "APP_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfigPath is searched when CONFIG_PATH is unset. The file is
// optional; env vars alone are enough to run the service.
const defaultConfigPath = "config.yaml"

// Config contains the runtime configuration of the service. It is built once
// at startup and passed by value to every component; nothing mutates it
// afterwards.
type Config struct {
	TZ              string   `koanf:"tz"`
	LogLevel        string   `koanf:"log_level"`
	LogFormat       string   `koanf:"log_format"`
	Env             string   `koanf:"env"`
	APITitle        string   `koanf:"api_title"`
	BaseDomain      string   `koanf:"base_domain"`
	ListenAddr      string   `koanf:"listen_addr"`
	SegmentWriteKey string   `koanf:"segment_write_key"`
	SegmentEndpoint string   `koanf:"segment_endpoint"`
	AllowedOrigins  []string `koanf:"allowed_origins"`
	APIKey          string   `koanf:"api_key"`
	PageStrict      bool     `koanf:"page_strict"`
	SourceName      string   `koanf:"source_name"`

	// Location is resolved from TZ during Load.
	Location *time.Location `koanf:"-"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:        "debug",
		LogFormat:       "json",
		Env:             "local",
		APITitle:        "Analytics Tracking API",
		BaseDomain:      "localhost:8000",
		ListenAddr:      ":8000",
		SegmentWriteKey: "noKey",
		PageStrict:      true,
		SourceName:      "default",
	}
}

// Production reports whether the deployment environment warrants strict
// transport settings (Secure cookies).
func (c Config) Production() bool {
	return c.Env == "staging" || c.Env == "production"
}

// CookieDomain is the base domain without any port, suitable for Set-Cookie.
func (c Config) CookieDomain() string {
	host, _, ok := strings.Cut(c.BaseDomain, ":")
	if ok {
		return host
	}
	return c.BaseDomain
}

// Load builds the configuration from layered sources: struct defaults, an
// optional YAML file, then APP_-prefixed environment variables. The plain TZ
// variable wins over APP_TZ, matching conventional process timezone handling.
//
// A missing or unresolvable timezone is a startup failure: the process must
// not come up without one.
func Load() (Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	// Env vars arrive as strings; allowed_origins is comma-separated there.
	if err := splitSliceField(k, "allowed_origins"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if tz := os.Getenv("TZ"); tz != "" {
		cfg.TZ = tz
	}
	if cfg.TZ == "" {
		return Config{}, fmt.Errorf(
			"process must be run with the system timezone set: use TZ or %sTZ", EnvPrefix)
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return Config{}, fmt.Errorf("resolve timezone %q: %w", cfg.TZ, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func splitSliceField(k *koanf.Koanf, path string) error {
	val := k.Get(path)
	raw, ok := val.(string)
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	if err := k.Set(path, origins); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}
