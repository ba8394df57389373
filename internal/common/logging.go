// Package common provides shared utilities for the Upstox MCP server.
package common

import (
	"os"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// Logger wraps arbor.ILogger to provide a consistent interface
type Logger struct {
	arbor.ILogger
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// discardWriter implements writers.IWriter and discards all output.
// Used by NewSilentLogger to prevent dispatch to globally-registered writers.
type discardWriter struct{}

func (w *discardWriter) Write(p []byte) (int, error)           { return len(p), nil }
func (w *discardWriter) WithLevel(_ log.Level) writers.IWriter { return w }
func (w *discardWriter) GetFilePath() string                   { return "" }
func (w *discardWriter) Close() error                          { return nil }

// NewLogger creates a new logger with the specified level, console writer
// (stderr) and file writer.
func NewLogger(level string) *Logger {
	return NewLoggerFromConfig(LoggingConfig{
		Level:   level,
		Outputs: []string{"console", "file"},
	})
}

// NewLoggerFromConfig creates a logger configured from LoggingConfig.
// Console output goes to stderr so stdout stays clean for the stdio transport.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	level := cfg.Level
	if level == "" {
		level = "info"
	}

	l := arbor.NewLogger()

	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"console", "file"}
	}

	for _, out := range outputs {
		switch out {
		case "console":
			l = l.WithConsoleWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeConsole,
				Writer:     os.Stderr,
				TimeFormat: "2006-01-02T15:04:05Z07:00",
			})
		case "file":
			filePath := cfg.FilePath
			if filePath == "" {
				filePath = "logs/upstox-mcp.log"
			}
			maxSize := int64(cfg.MaxSizeMB) * 1024 * 1024
			if maxSize <= 0 {
				maxSize = 500 * 1024 // 500KB default
			}
			maxBackups := cfg.MaxBackups
			if maxBackups <= 0 {
				maxBackups = 20
			}
			l = l.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   filePath,
				MaxSize:    maxSize,
				MaxBackups: maxBackups,
				TimeFormat: "2006-01-02T15:04:05Z07:00",
			})
		}
	}

	l = l.WithLevelFromString(level)

	return &Logger{ILogger: l}
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger() *Logger {
	return NewLogger("info")
}

// NewSilentLogger creates a logger that discards all output.
// Uses a discardWriter to prevent fallthrough to globally-registered writers.
func NewSilentLogger() *Logger {
	arborLogger := arbor.NewLogger().WithWriters([]writers.IWriter{&discardWriter{}})
	return &Logger{ILogger: arborLogger}
}

// WithCorrelationId returns a new Logger with a correlation ID set.
// Used by the HTTP middleware to trace a request through all layers.
func (l *Logger) WithCorrelationId(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}
