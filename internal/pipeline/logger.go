package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/libdb/internal/logging"
)

// Logger is the per-entity logger. Every call is emitted locally through slog and
// forwarded to the LogSink without waiting for it.
type Logger struct {
	sender string
	local  *slog.Logger
	sink   *LogSink
}

func newLogger(sender string, local *slog.Logger, sink *LogSink) Logger {
	return Logger{
		sender: sender,
		local:  local.With(slog.String(logging.SenderKey, sender)),
		sink:   sink,
	}
}

// Sender returns the name records are attributed to
func (l Logger) Sender() string {
	return l.sender
}

func (l Logger) logf(level slog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.local.Log(context.Background(), level, msg)
	if l.sink != nil {
		l.sink.Log(level, l.sender, msg)
	}
}

func (l Logger) Tracef(format string, args ...any) { l.logf(logging.LevelTrace, format, args...) }
func (l Logger) Debugf(format string, args ...any) { l.logf(logging.LevelDebug, format, args...) }
func (l Logger) Infof(format string, args ...any)  { l.logf(logging.LevelInfo, format, args...) }
func (l Logger) Warnf(format string, args ...any)  { l.logf(logging.LevelWarning, format, args...) }
func (l Logger) Errorf(format string, args ...any) { l.logf(logging.LevelError, format, args...) }

func (l Logger) Criticalf(format string, args ...any) {
	l.logf(logging.LevelCritical, format, args...)
}
