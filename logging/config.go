package logging

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultLevel  = "info"
	DefaultFormat = "text"
	DefaultOutput = "stdout"
)

// Viper keys the CLI binds its --log-* flags to; FromViper reads the same
// keys, so a config file or TASMOCTL_* environment variable can set any of
// them without a dedicated flag being passed.
const (
	KeyLevel  = "log-level"
	KeyFormat = "log-format"
	KeyOutput = "log-output"
	KeyFile   = "log-file"
)

// Config defines configuration for logging outputs and formatting. The CLI
// in cmd/tasmoctl binds it to --log-level/--log-format/--log-output, and the
// debug server's /api/log endpoint lets it be read and changed live.
type Config struct {
	Level    string        `json:"level"`
	Format   string        `json:"format"`
	Output   string        `json:"output"`
	FilePath string        `json:"filePath,omitempty"`
	Buffer   *bytes.Buffer `json:"-"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  DefaultLevel,
		Format: DefaultFormat,
		Output: DefaultOutput,
	}
}

// FromViper builds a Config from the bound log-level/log-format/log-output/
// log-file keys, falling back to defaults for anything unset. This is how
// cmd/tasmoctl hands its flag/config-file/env layering straight to the
// logging layer.
func FromViper(v *viper.Viper) Config {
	return Config{
		Level:    v.GetString(KeyLevel),
		Format:   v.GetString(KeyFormat),
		Output:   v.GetString(KeyOutput),
		FilePath: v.GetString(KeyFile),
	}.WithDefaults()
}

// WithDefaults fills in empty fields with defaults.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = DefaultLevel
	}
	if strings.TrimSpace(c.Format) == "" {
		c.Format = DefaultFormat
	}
	if strings.TrimSpace(c.Output) == "" {
		c.Output = DefaultOutput
	}
	return c
}

// Normalize lowercases string fields and clears file/buffer fields when not used.
func (c Config) Normalize() Config {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	if c.Output != "file" {
		c.FilePath = ""
	}
	if c.Output != "string" {
		c.Buffer = nil
	}
	return c
}

// Validate checks the configuration for supported values.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}

	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}

	switch c.Output {
	case "stdout", "stderr", "file", "string", "off":
	default:
		return fmt.Errorf("unsupported output %q", c.Output)
	}

	if c.Output == "file" && strings.TrimSpace(c.FilePath) == "" {
		return fmt.Errorf("file output requires filePath")
	}
	return nil
}

func normalizeConfig(cfg Config) (Config, error) {
	cfg = cfg.WithDefaults().Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
