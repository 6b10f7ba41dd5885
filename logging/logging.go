// Package logging sets up the process-wide slog default logger.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "060102 15:04:05.000"

// Setup configures the default slog logger with a tinted handler writing to
// stdout. Colors are disabled when stdout is not a terminal.
func Setup(level string) error {
	logLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: timeFormat,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(logLevel)
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}
