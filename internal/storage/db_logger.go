package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"townchat/backend/internal/logger"
)

// GormLogger sends GORM's logs through the service logger.
type GormLogger struct {
	LogLevel                  gormlogger.LogLevel
	SlowThreshold             time.Duration
	SkipCallerLookup          bool
	IgnoreRecordNotFoundError bool
}

// NewGormLogger maps a service log level name to a GORM log level.
func NewGormLogger(level string, slowThreshold time.Duration) gormlogger.Interface {
	var logLevel gormlogger.LogLevel
	switch level {
	case "DEBUG", "INFO":
		logLevel = gormlogger.Info
	case "WARNING", "ERROR":
		logLevel = gormlogger.Warn
	case "FATAL":
		logLevel = gormlogger.Error
	case "SILENT":
		logLevel = gormlogger.Silent
	default:
		logLevel = gormlogger.Warn
	}

	return &GormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             slowThreshold,
		IgnoreRecordNotFoundError: true,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		logger.Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		logger.Warningf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		logger.Errorf(msg, data...)
	}
}

// Trace logs failed statements, slow statements and, at Info, everything.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	ms := float64(elapsed.Nanoseconds()) / 1e6

	var source string
	if !l.SkipCallerLookup {
		source = " [" + utils.FileWithLineNum() + "]"
	}

	switch {
	case err != nil && l.LogLevel >= gormlogger.Error &&
		(!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		sql, _ := fc()
		logger.Errorf("[%.3fms]%s %s; error=%v", ms, source, sql, err)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		logger.Warningf("[%.3fms]%s %s; %s, rows=%v", ms, source, sql,
			fmt.Sprintf("SLOW SQL >= %v", l.SlowThreshold), rows)
	case l.LogLevel == gormlogger.Info:
		sql, rows := fc()
		logger.Debugf("[%.3fms]%s %s; rows=%v", ms, source, sql, rows)
	}
}
