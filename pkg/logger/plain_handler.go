package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// hiddenKeys never reach the console line.
var hiddenKeys = map[string]bool{
	"intention": true,
	"time":      true,
	"level":     true,
	"msg":       true,
	"component": true,
	"chat":      true,
}

// plainHandler prints "<icon> message k=v ..." with no time or level
// decoration. Warnings and errors get a short level tag instead of an icon.
type plainHandler struct {
	w       io.Writer
	attrs   []slog.Attr
	mu      *sync.Mutex
	leveler slog.Leveler
}

func newPlainHandler(w io.Writer, leveler slog.Leveler) slog.Handler {
	return &plainHandler{w: w, leveler: leveler, mu: &sync.Mutex{}}
}

func (h *plainHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	if h.leveler == nil {
		return true
	}
	return lvl >= h.leveler.Level()
}

func (h *plainHandler) Handle(_ context.Context, r slog.Record) error {
	var intention string
	var pairs []string

	collect := func(a slog.Attr) {
		if a.Value.Kind() == slog.KindGroup {
			for _, ga := range a.Value.Group() {
				if ga.Key == "intention" {
					intention = ga.Value.String()
				}
				if !hiddenKeys[ga.Key] {
					pairs = append(pairs, fmt.Sprintf("%s=%v", ga.Key, ga.Value))
				}
			}
			return
		}
		if a.Key == "intention" {
			intention = a.Value.String()
		}
		if !hiddenKeys[a.Key] {
			pairs = append(pairs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		}
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	var prefix string
	switch {
	case r.Level >= slog.LevelError:
		prefix = "[ERROR] "
	case r.Level >= slog.LevelWarn:
		prefix = "[WARN] "
	case intention != "":
		prefix = iconFor(Intention(intention)) + " "
	}

	line := prefix + r.Message
	if len(pairs) > 0 {
		line += " " + strings.Join(pairs, " ")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *plainHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

// WithGroup is flattened for console output.
func (h *plainHandler) WithGroup(name string) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), slog.Group(name))
	return &nh
}
