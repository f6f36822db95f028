package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/zfogg/nearby/cli/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *log.Logger
var rotator *lumberjack.Logger

// Init initializes the logger
func Init(verbose bool) {
	// Determine log level
	logLevel, err := log.ParseLevel(config.GetString("log.level"))
	if err != nil {
		logLevel = log.InfoLevel
	}
	if verbose {
		logLevel = log.DebugLevel
	}

	var w io.Writer = os.Stderr
	if logFile := config.GetString("log.file"); logFile != "" {
		rotator = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    config.GetInt("log.max_size_mb"),
			MaxBackups: config.GetInt("log.max_backups"),
			Compress:   true,
		}
		w = rotator
	}

	logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "nearby",
	})
	logger.SetLevel(logLevel)
}

// InitWriter points the logger at w, for tests and embedding
func InitWriter(w io.Writer, level log.Level) {
	logger = log.New(w)
	logger.SetLevel(level)
}

// Close flushes and closes the rotating log file, if any
func Close() error {
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// Fatal logs a fatal message and exits
func Fatal(msg string, args ...interface{}) {
	if logger != nil {
		logger.Fatal(msg, args...)
	} else {
		os.Exit(1)
	}
}

// GetLogger returns the logger instance
func GetLogger() *log.Logger {
	return logger
}
