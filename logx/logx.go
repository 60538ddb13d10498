// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logx provides leveled logging on top of the standard [log/slog],
// with colored level tags when the terminal supports them. The [UserLevel]
// variable controls the verbosity of both slog output and the Print
// functions in this package.
package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
)

// UseColor is whether to use color in log messages. It is on by default.
var UseColor = true

var profile = termenv.ColorProfile()

func init() {
	slog.SetDefault(slog.New(NewHandler(os.Stderr)))
}

// Handler is a [slog.Handler] whose output is designed for
// human consumption on a terminal: a colored level tag, the
// message, and space-separated key=value attributes.
type Handler struct {
	mu     *sync.Mutex // shared across derived handlers, they share out
	out    io.Writer
	attrs  []slog.Attr
	groups []string
}

// NewHandler returns a new [Handler] writing to the given writer.
func NewHandler(out io.Writer) *Handler {
	return &Handler{mu: &sync.Mutex{}, out: out}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= UserLevel
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	b := &strings.Builder{}
	b.WriteString(LevelText(r.Level))
	b.WriteString(" ")
	b.WriteString(r.Message)
	prefix := strings.Join(h.groups, ".")
	if prefix != "" {
		prefix += "."
	}
	for _, a := range h.attrs {
		writeAttr(b, prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(b, prefix, a)
		return true
	})
	b.WriteString("\n")
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := &Handler{mu: h.mu, out: h.out, groups: h.groups}
	nh.attrs = append(append(nh.attrs, h.attrs...), attrs...)
	return nh
}

func (h *Handler) WithGroup(name string) slog.Handler {
	nh := &Handler{mu: h.mu, out: h.out, attrs: h.attrs}
	nh.groups = append(append(nh.groups, h.groups...), name)
	return nh
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	b.WriteString(" ")
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteString("=")
	fmt.Fprintf(b, "%v", a.Value.Any())
}

// LevelText returns the standard textual tag for the given level,
// colored per [LevelColor] when [UseColor] is on.
func LevelText(level slog.Level) string {
	return LevelColor(level, level.String())
}

// LevelColor applies the color for the given level to the given string.
func LevelColor(level slog.Level, s string) string {
	if !UseColor {
		return s
	}
	var color string
	switch {
	case level >= slog.LevelError:
		color = "9"
	case level >= slog.LevelWarn:
		color = "11"
	case level >= slog.LevelInfo:
		color = "12"
	default:
		color = "8"
	}
	return termenv.String(s).Foreground(profile.Color(color)).String()
}
