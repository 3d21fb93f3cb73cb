// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Output formats.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
	FormatLogfmt   = "logfmt"
)

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return ethlog.DiscardHandler()
}

// NewHandler creates a handler of the given format writing records at or above level.
// Pass a *slog.LevelVar to change the level at runtime.
func NewHandler(format string, wr io.Writer, level slog.Leveler, useColor bool) (slog.Handler, error) {
	var h slog.Handler
	switch format {
	case "", FormatTerminal:
		h = ethlog.NewTerminalHandlerWithLevel(wr, LevelTrace, useColor)
	case FormatJSON:
		h = ethlog.JSONHandlerWithLevel(wr, LevelTrace)
	case FormatLogfmt:
		h = ethlog.LogfmtHandlerWithLevel(wr, LevelTrace)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return &leveledHandler{h, level}, nil
}

type leveledHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *leveledHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *leveledHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveledHandler{h.Handler.WithAttrs(attrs), h.level}
}

func (h *leveledHandler) WithGroup(name string) slog.Handler {
	return &leveledHandler{h.Handler.WithGroup(name), h.level}
}
