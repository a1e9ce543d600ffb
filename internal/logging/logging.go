package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	liblog "trpc.group/trpc-go/trpc-a2a-go/log"
)

// Logger is the global logger instance for the application
var Logger *zap.SugaredLogger

func init() {
	logger, _ := zap.NewProduction()
	Logger = logger.Sugar()
}

// Init replaces the global logger with a console logger writing to w at the
// given level. The trpc-a2a-go library logger shares the same core.
func Init(level string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:      "ts",
			LevelKey:     "lvl",
			MessageKey:   "message",
			CallerKey:    "caller",
			EncodeLevel:  zapcore.CapitalLevelEncoder,
			EncodeTime:   zapcore.RFC3339TimeEncoder,
			EncodeCaller: zapcore.ShortCallerEncoder,
		}),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(lvl),
	)

	Logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	liblog.Default = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// Top-level helpers for package alias usage
func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Fatalf(format string, args ...interface{}) { Logger.Fatalf(format, args...) }

// Sync flushes buffered log entries
func Sync() { _ = Logger.Sync() }
