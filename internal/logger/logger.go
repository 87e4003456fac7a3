// Package logger configures the standard logger to write to stdout and a
// rotating log file, and adds level-prefixed helpers on top of it.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"townchat/backend/internal/config"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(LevelInfo))
}

// ParseLevel maps a config string to a Level. Unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR", "FATAL":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the minimum level that reaches the output.
func SetLevel(l Level) { minLevel.Store(int32(l)) }

// Enabled reports whether messages at l are currently written.
func Enabled(l Level) bool { return int32(l) >= minLevel.Load() }

func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

func createRotatingLogger(logFilePath string, cfg config.LoggerConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}
}

// Setup routes the standard logger to stdout and a rotating log file.
// The returned closer flushes and closes the file.
func Setup(cfg config.LoggerConfig) (io.Closer, error) {
	SetLevel(ParseLevel(cfg.Level))

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "townchat"
	}
	logFilePath := createLogFilePath(cfg.Directory, prefix)
	rotating := createRotatingLogger(logFilePath, cfg)

	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	log.Printf("Logging initialized: writing to %s", logFilePath)
	return rotating, nil
}

func output(l Level, prefix, format string, args ...interface{}) {
	if !Enabled(l) {
		return
	}
	// calldepth 3: output -> Xxxf -> caller
	_ = log.Output(3, prefix+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{})   { output(LevelDebug, "DEBUG: ", format, args...) }
func Infof(format string, args ...interface{})    { output(LevelInfo, "INFO: ", format, args...) }
func Warningf(format string, args ...interface{}) { output(LevelWarning, "WARNING: ", format, args...) }
func Errorf(format string, args ...interface{})   { output(LevelError, "ERROR: ", format, args...) }
