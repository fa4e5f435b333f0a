package logger

import "context"

type contextKey struct{}

// defaultLogger is used by the package-level helpers when no Logger has
// been attached to the context.
var defaultLogger = NewLogger()

// WithLogger returns a context carrying l, retrievable by FromContext.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the Logger attached to ctx, or a default Logger if
// none was attached.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return defaultLogger
}

// The following package-level helpers let call sites log against whatever
// Logger is attached to ctx without threading one through explicitly. The
// reported source location points at the helper in this file, not the call
// site, since they add a stack frame the fixed skip count in log() doesn't
// account for.

func Debug(ctx context.Context, msg string, args ...any) { FromContext(ctx).Debug(msg, args...) }
func Info(ctx context.Context, msg string, args ...any)  { FromContext(ctx).Info(msg, args...) }
func Warn(ctx context.Context, msg string, args ...any)  { FromContext(ctx).Warn(msg, args...) }
func Error(ctx context.Context, msg string, args ...any) { FromContext(ctx).Error(msg, args...) }

func Debugf(ctx context.Context, format string, args ...any) { FromContext(ctx).Debugf(format, args...) }
func Infof(ctx context.Context, format string, args ...any)  { FromContext(ctx).Infof(format, args...) }
func Warnf(ctx context.Context, format string, args ...any)  { FromContext(ctx).Warnf(format, args...) }
func Errorf(ctx context.Context, format string, args ...any) { FromContext(ctx).Errorf(format, args...) }
