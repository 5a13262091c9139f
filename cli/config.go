package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config carries the resolved serve settings. Resolution precedence is
// flag over environment over config file over default.
type Config struct {
	Transport      string
	Host           string
	Port           int
	CORS           bool
	LogLevel       string
	RequestTimeout time.Duration
	IdleTimeout    time.Duration
}

// fileConfig is the YAML shape of the optional config file. Pointer fields
// distinguish "absent" from zero values when overlaying onto defaults.
// Timeouts are integer seconds, matching the flags.
type fileConfig struct {
	Transport      *string `yaml:"transport"`
	Host           *string `yaml:"host"`
	Port           *int    `yaml:"port"`
	CORS           *bool   `yaml:"cors"`
	LogLevel       *string `yaml:"log_level"`
	RequestTimeout *int    `yaml:"request_timeout"`
	IdleTimeout    *int    `yaml:"idle_timeout"`
}

func defaultConfig() Config {
	return Config{
		Transport:      "stdio",
		Host:           "127.0.0.1",
		Port:           3000,
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
		IdleTimeout:    300 * time.Second,
	}
}

// resolveConfig builds the effective configuration for the serve command.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg := defaultConfig()

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		if err := applyConfigFile(&cfg, configPath); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyFlags(&cfg, cmd)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Transport != nil {
		cfg.Transport = *fc.Transport
	}
	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.CORS != nil {
		cfg.CORS = *fc.CORS
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(*fc.RequestTimeout) * time.Second
	}
	if fc.IdleTimeout != nil {
		cfg.IdleTimeout = time.Duration(*fc.IdleTimeout) * time.Second
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("AURORA_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("AURORA_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AURORA_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("AURORA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AURORA_REQUEST_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AURORA_REQUEST_TIMEOUT %q: %w", v, err)
		}
		cfg.RequestTimeout = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("AURORA_IDLE_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AURORA_IDLE_TIMEOUT %q: %w", v, err)
		}
		cfg.IdleTimeout = time.Duration(secs) * time.Second
	}
	return nil
}

func applyFlags(cfg *Config, cmd *cobra.Command) {
	fl := cmd.Flags()
	if fl.Changed("transport") {
		cfg.Transport, _ = fl.GetString("transport")
	}
	if fl.Changed("host") {
		cfg.Host, _ = fl.GetString("host")
	}
	if fl.Changed("port") {
		cfg.Port, _ = fl.GetInt("port")
	}
	if fl.Changed("cors") {
		cfg.CORS, _ = fl.GetBool("cors")
	}
	if fl.Changed("log-level") {
		cfg.LogLevel, _ = fl.GetString("log-level")
	}
	if fl.Changed("request-timeout") {
		secs, _ := fl.GetInt("request-timeout")
		cfg.RequestTimeout = time.Duration(secs) * time.Second
	}
	if fl.Changed("idle-timeout") {
		secs, _ := fl.GetInt("idle-timeout")
		cfg.IdleTimeout = time.Duration(secs) * time.Second
	}
}

func (c Config) validate() error {
	switch c.Transport {
	case "stdio", "http", "sse":
	default:
		return fmt.Errorf("unknown transport %q (want stdio, http, or sse)", c.Transport)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := c.slogLevel(); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	return nil
}

func (c Config) slogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want trace, debug, info, warn, or error)", c.LogLevel)
	}
}
