// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"log/slog"
)

// lazyLogger binds context to whatever the root logger is at call time.
type lazyLogger struct {
	ctx []any
}

func (l *lazyLogger) get() Logger {
	return Root().With(l.ctx...)
}

func (l *lazyLogger) With(ctx ...any) Logger {
	return &lazyLogger{ctx: append(append([]any{}, l.ctx...), ctx...)}
}

func (l *lazyLogger) New(ctx ...any) Logger { return l.With(ctx...) }

func (l *lazyLogger) Log(level slog.Level, msg string, ctx ...any) { l.get().Log(level, msg, ctx...) }
func (l *lazyLogger) Trace(msg string, ctx ...any)                 { l.get().Trace(msg, ctx...) }
func (l *lazyLogger) Debug(msg string, ctx ...any)                 { l.get().Debug(msg, ctx...) }
func (l *lazyLogger) Info(msg string, ctx ...any)                  { l.get().Info(msg, ctx...) }
func (l *lazyLogger) Warn(msg string, ctx ...any)                  { l.get().Warn(msg, ctx...) }
func (l *lazyLogger) Error(msg string, ctx ...any)                 { l.get().Error(msg, ctx...) }
func (l *lazyLogger) Crit(msg string, ctx ...any)                  { l.get().Crit(msg, ctx...) }

func (l *lazyLogger) Write(level slog.Level, msg string, attrs ...any) {
	l.get().Write(level, msg, attrs...)
}

func (l *lazyLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return Root().Enabled(ctx, level)
}

func (l *lazyLogger) Handler() slog.Handler {
	return l.get().Handler()
}
