// Package logger provides structured logging using zap.
//
// Console output goes to stderr so that it never mixes with command output
// on stdout. An optional rotating file receives the same entries.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance. It discards everything until Init.
var Log = zap.NewNop()

var console io.Writer = os.Stderr

// SetConsole redirects console output, mainly for tests.
func SetConsole(w io.Writer) {
	console = w
}

// FileConfig holds file logging configuration. An empty Path disables the
// file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	JSON       bool
}

// DefaultFileConfig returns default file logging settings.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// Options configures New.
type Options struct {
	Level   string
	Console bool
	File    FileConfig
}

// Init installs a global logger writing to the console and, when logFile is
// set, to a rotating file.
func Init(level string, logFile string) error {
	o := Options{Level: level, Console: true}
	if logFile != "" {
		o.File = DefaultFileConfig(logFile)
	}
	log, err := New(o)
	if err != nil {
		return err
	}
	Log = log
	return nil
}

// New builds a logger from o without touching the global one.
func New(o Options) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(o.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cores []zapcore.Core
	if o.Console {
		enc := zapcore.NewConsoleEncoder(encoderConfig(
			zapcore.TimeEncoderOfLayout("15:04:05"),
			zapcore.CapitalColorLevelEncoder,
		))
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), lvl))
	}

	if f := o.File; f.Path != "" {
		w := &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAgeDays,
			Compress:   f.Compress,
			LocalTime:  true,
		}
		cfg := encoderConfig(zapcore.ISO8601TimeEncoder, zapcore.CapitalLevelEncoder)
		var enc zapcore.Encoder
		if f.JSON {
			enc = zapcore.NewJSONEncoder(cfg)
		} else {
			enc = zapcore.NewConsoleEncoder(cfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func encoderConfig(t zapcore.TimeEncoder, l zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		CallerKey:        "caller",
		EncodeTime:       t,
		EncodeLevel:      l,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// Component returns a logger named after a pipeline stage.
func Component(name string) *zap.Logger {
	return Log.Named(name)
}

// Stage logs the start of a pipeline stage at debug level and returns a
// function that logs its completion with the elapsed time.
func Stage(log *zap.Logger, name string) func(fields ...zap.Field) {
	start := time.Now()
	log.Debug("stage started", zap.String("stage", name))
	return func(fields ...zap.Field) {
		fields = append(fields, zap.String("stage", name), zap.Duration("elapsed", time.Since(start)))
		log.Debug("stage finished", fields...)
	}
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Log.Sync()
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}
