// Package logger provides structured logging with rotation and live
// streaming to websocket clients.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "pulsarr.log"

// Logger wraps zerolog and owns the rotating file writer plus the
// in-memory broadcaster that feeds the logs API and websocket stream.
type Logger struct {
	zerolog.Logger
	rotator     *lumberjack.Logger
	broadcaster *LogBroadcaster
	logPath     string
}

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for log files; empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// IsDevBuild reports whether the binary was started through "go run",
// detected via the go-build temp directory in the executable path.
func IsDevBuild() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return strings.Contains(exe, "go-build")
}

func (cfg Config) newRotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// New builds the application logger. Output always goes to the console
// and the broadcaster ring; a rotating file is added when cfg.Path is
// set. Dev builds get debug level unless trace was asked for.
func New(cfg Config) *Logger {
	var console io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	if cfg.Format == "json" {
		console = os.Stdout
	}

	level := parseLevel(cfg.Level)
	if IsDevBuild() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	l := &Logger{broadcaster: NewLogBroadcaster(nil, defaultBufferSize)}

	sinks := []io.Writer{console, l.broadcaster}
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err == nil {
			l.logPath = filepath.Join(cfg.Path, logFileName)
			l.rotator = cfg.newRotator(l.logPath)
			sinks = append(sinks, l.rotator)
		}
	}

	l.Logger = zerolog.New(io.MultiWriter(sinks...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return l
}

// SetBroadcastHub wires websocket streaming for new log entries.
func (l *Logger) SetBroadcastHub(hub Broadcaster) {
	l.broadcaster.SetHub(hub)
}

// GetRecentLogs returns buffered log entries.
func (l *Logger) GetRecentLogs() []LogEntry {
	return l.broadcaster.GetRecentLogs()
}

// GetLogFilePath returns the active log file path, or empty when logging
// only to the console.
func (l *Logger) GetLogFilePath() string {
	return l.logPath
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a new logger with additional context fields.
func (l *Logger) With() zerolog.Context {
	return l.Logger.With()
}

// WithComponent returns a child logger tagged with a component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:      l.Logger.With().Str("component", component).Logger(),
		rotator:     l.rotator,
		broadcaster: l.broadcaster,
		logPath:     l.logPath,
	}
}
