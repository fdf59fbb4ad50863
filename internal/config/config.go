// Package config loads the daemon configuration (viper, YAML plus DECKD_
// environment overrides) and the binding set (JSON).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seagrayinc/soomfon-deck/internal/bindings"
)

// Config is the full daemon configuration.
type Config struct {
	Log          LogConfig    `mapstructure:"log"`
	Device       DeviceConfig `mapstructure:"device"`
	Engine       EngineConfig `mapstructure:"engine"`
	BindingsFile string       `mapstructure:"bindings_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

type DeviceConfig struct {
	Brightness       int           `mapstructure:"brightness"`
	LongPress        time.Duration `mapstructure:"long_press"`
	Debounce         time.Duration `mapstructure:"debounce"`
	Keepalive        time.Duration `mapstructure:"keepalive"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
}

type EngineConfig struct {
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("device.brightness", 80)
	v.SetDefault("device.long_press", "500ms")
	v.SetDefault("device.debounce", "50ms")
	v.SetDefault("device.keepalive", "10s")
	v.SetDefault("device.reconnect_backoff", "2s")

	v.SetDefault("engine.default_timeout", "30s")
	v.SetDefault("engine.history_capacity", 100)
}

// Load reads the configuration file at path, or the first deckd.yaml on
// the default search path when path is empty. Environment variables with
// the DECKD_ prefix override file values (DECKD_DEVICE_BRIGHTNESS=50).
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DECKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("deckd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/deckd")
		}
		v.AddConfigPath("/etc/deckd")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Device.Brightness < 0 || c.Device.Brightness > 100 {
		return fmt.Errorf("device.brightness %d out of range 0..100", c.Device.Brightness)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Logger builds the daemon logger from the log section.
func (c *Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q unknown", s)
	}
}

// LoadBindings reads a binding set from a JSON file. An empty path yields
// an empty set, so a daemon with no bindings file still runs and reports
// events.
func LoadBindings(path string) ([]bindings.Binding, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bindings %s: %w", path, err)
	}
	var bs []bindings.Binding
	if err := json.Unmarshal(data, &bs); err != nil {
		return nil, fmt.Errorf("parse bindings %s: %w", path, err)
	}
	return bs, nil
}
