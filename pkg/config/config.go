// Package config loads runtime settings from an optional YAML file, a .env
// file and ARTIFFEX_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

// Config holds the settings shared by the CLI and the server.
type Config struct {
	TextModel   string `yaml:"text_model"`
	ImageModel  string `yaml:"image_model"`
	AspectRatio string `yaml:"aspect_ratio"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	OutputDir   string `yaml:"output_dir"`
	Listen      string `yaml:"listen"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		TextModel:   "gemini:gemini-2.5-flash",
		ImageModel:  "openai:dall-e-3",
		AspectRatio: workflow.DefaultAspectRatio,
		LogLevel:    "info",
		LogFormat:   "text",
		OutputDir:   "artiffex-out",
		Listen:      ":8080",
	}
}

// envOverrides maps environment variables onto config fields.
var envOverrides = map[string]func(*Config) *string{
	"ARTIFFEX_TEXT_MODEL":  func(c *Config) *string { return &c.TextModel },
	"ARTIFFEX_IMAGE_MODEL": func(c *Config) *string { return &c.ImageModel },
	"ARTIFFEX_LOG_LEVEL":   func(c *Config) *string { return &c.LogLevel },
	"ARTIFFEX_LISTEN":      func(c *Config) *string { return &c.Listen },
}

// Load reads .env from the working directory if present, then the YAML file
// at path if path is non-empty, then the environment overrides.
func Load(path string) (Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	for name, field := range envOverrides {
		if v := os.Getenv(name); v != "" {
			*field(&cfg) = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail late.
func (c Config) Validate() error {
	var problems []string
	for _, m := range []struct{ name, id string }{{"text_model", c.TextModel}, {"image_model", c.ImageModel}} {
		if provider, model, ok := strings.Cut(m.id, ":"); !ok || provider == "" || model == "" {
			problems = append(problems, fmt.Sprintf("%s %q: want provider:model", m.name, m.id))
		}
	}
	if !workflow.ValidAspectRatio(c.AspectRatio) {
		problems = append(problems, fmt.Sprintf("aspect_ratio %q is not supported", c.AspectRatio))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q: want debug, info, warn or error", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q: want text or json", c.LogFormat))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// NewLogger creates a logger writing to w at the given level. It does not
// set the global logger.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
