// Package logger builds the zap-backed logr.Logger used by the dumpx CLI.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oakwood-commons/dumpx/pkg/settings"
)

type loggerContextKey struct{}

// Field names shared by every entry.
const (
	CommandKey   = "command"
	CommitKey    = "commit"
	VersionKey   = "version"
	BuildTimeKey = "build_time"
	GoVersionKey = "go_version"
	TimeStampKey = "timestamp"
	MessageKey   = "message"
)

var (
	once      sync.Once
	globalZap *zap.Logger
	global    *logr.Logger
	discard   = logr.Discard()
)

// New returns a logr.Logger writing JSON entries to w at or above level
// (zap levels: -1 debug, 0 info, 1 warn, ...). Verbosity V(n) maps to zap
// level -n, so V(1) is only written when level <= -1.
func New(w io.Writer, level int8) (logr.Logger, *zap.Logger) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = TimeStampKey
	encoderCfg.MessageKey = MessageKey

	goVersion := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(zapcore.Level(level)),
	).With([]zapcore.Field{
		zap.String(CommitKey, settings.VersionInformation.Commit),
		zap.String(VersionKey, settings.VersionInformation.BuildVersion),
		zap.String(BuildTimeKey, settings.VersionInformation.BuildTime),
		zap.String(GoVersionKey, goVersion),
	})

	zl := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
		zap.WithFatalHook(zapcore.WriteThenPanic),
	)
	return zapr.NewLogger(zl), zl
}

// Get initializes the process logger on stderr. Only the first call's level
// takes effect.
func Get(level int8) *logr.Logger {
	once.Do(func() {
		l, zl := New(os.Stderr, level)
		globalZap = zl
		global = &l
	})
	if global == nil {
		return &discard
	}
	return global
}

// WithLogger attaches log to ctx. An identical logger already attached is
// not stored twice.
func WithLogger(ctx context.Context, log *logr.Logger) context.Context {
	if lp, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok && lp == log {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, log)
}

// FromContext returns the logger attached to ctx, then the process logger,
// then a discarding logger.
func FromContext(ctx context.Context) *logr.Logger {
	if log, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok {
		return log
	}
	if global != nil {
		return global
	}
	return &discard
}

// Sync flushes buffered entries. Call it before exit.
func Sync() {
	if globalZap == nil {
		return
	}
	if err := globalZap.Sync(); err != nil && !isIgnorableSyncError(err) {
		fmt.Fprintf(os.Stderr, "WARNING: failed to sync logger: %v\n", err)
	}
}

// isIgnorableSyncError reports the errors Sync returns for pipes and TTYs.
// Windows consoles wrap ERROR_INVALID_HANDLE in *os.PathError, which does not
// compare equal to syscall.EINVAL.
func isIgnorableSyncError(err error) bool {
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.EIO) || errors.Is(err, syscall.EBADF) {
		return true
	}
	return strings.Contains(err.Error(), "The handle is invalid")
}
