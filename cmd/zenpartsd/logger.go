package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

// LoggingConfig is the logging section of the daemon config.
type LoggingConfig struct {
	// Level is error, warn, info or debug.
	Level string `yaml:"level"`
	// Format is "text" (key=value lines) or "json".
	Format string `yaml:"format"`
}

func (c LoggingConfig) level() (slog.Level, error) {
	switch strings.ToLower(c.Level) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return 0, fmt.Errorf("invalid log level %q (must be error, warn, info, or debug)", c.Level)
}

func (c LoggingConfig) validate() error {
	if _, err := c.level(); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Format {
	case "", logFormatText, logFormatJSON:
		return nil
	}
	return fmt.Errorf("logging.format must be %q or %q", logFormatText, logFormatJSON)
}

// NewLogger builds the daemon logger writing to w.
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	lvl, _ := c.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Format == logFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
