package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"smarttracker/internal/config"
)

const (
	logLevelEnvKey = "SMARTTRACKER_LOG_LEVEL"
	serviceName    = "smarttracker"
)

// levelSource records where the effective log level came from.
type levelSource string

const (
	fromFlag    levelSource = "flag"
	fromEnv     levelSource = "env"
	fromConfig  levelSource = "config"
	fromDefault levelSource = "default"
)

var levelAliases = map[string]string{
	"warning": "warn",
	"err":     "error",
	"trace":   "debug",
}

// logOutput is where CLI and server logs go.
var logOutput io.Writer = os.Stderr

// configureLoggerForCLI installs the default logger. A bad --log-level is an
// error; a bad env or config value falls back to the default level and
// returns a warning for the user instead.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	raw, source := selectedLogLevel(flagLevel, envLevel, configLevel)

	level, err := parseLogLevel(raw)
	if err == nil {
		slog.SetDefault(newLogger(logOutput, level))
		return "", nil
	}
	if source == fromFlag {
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	}

	fallback, _ := parseLogLevel("")
	slog.SetDefault(newLogger(logOutput, fallback))
	switch source {
	case fromEnv:
		return fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, envLevel, config.DefaultLogLevel), nil
	case fromConfig:
		return fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel), nil
	}
	return "", nil
}

func selectedLogLevel(flagLevel, envLevel, configLevel string) (string, levelSource) {
	for _, candidate := range []struct {
		value  string
		source levelSource
	}{
		{flagLevel, fromFlag},
		{envLevel, fromEnv},
		{configLevel, fromConfig},
	} {
		if strings.TrimSpace(candidate.value) != "" {
			return candidate.value, candidate.source
		}
	}
	return "", fromDefault
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		value = config.DefaultLogLevel
	}
	if alias, ok := levelAliases[value]; ok {
		value = alias
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger builds the text logger every smarttracker process uses. Each
// record carries the service name.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", serviceName)
}

// componentLogger tags the default logger with a server component name.
func componentLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
