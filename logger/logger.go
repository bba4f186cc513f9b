// Package logger is the slog handler used by the command line tool. Records
// go to an optional log file and, at info level and above or in debug mode,
// to stderr.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/BertoldVdb/spinor/norflash"
)

type LogHandler struct {
	out    io.Writer
	stderr io.Writer
	level  slog.Leveler
	attrs  []string
	group  string
	mu     *sync.Mutex
	debug  bool
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) clone() *LogHandler {
	n := *h
	n.attrs = append([]string(nil), h.attrs...)
	return &n
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := h.clone()
	for _, a := range attrs {
		n.attrs = append(n.attrs, n.format(a))
	}
	return n
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	n := h.clone()
	n.group += name + "."
	return n
}

func (h *LogHandler) format(a slog.Attr) string {
	return h.group + a.Key + "=" + a.Value.Resolve().String()
}

// LevelName knows about norflash.LevelNoisy.
func LevelName(l slog.Level) string {
	if l <= norflash.LevelNoisy {
		return "NOISY"
	}
	return l.String()
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{formattedTime, LevelName(r.Level) + ":", r.Message}
	strs = append(strs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, h.format(a))
		return true
	})
	b := []byte(strings.Join(strs, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}

	if h.debug || r.Level > slog.LevelDebug {
		if _, werr := h.stderr.Write(b); err == nil {
			err = werr
		}
	}
	return err
}

func (h *LogHandler) SetDebug(debug bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.debug = debug
}

// NewHandler creates a handler writing to file, which may be nil.
func NewHandler(file io.Writer, level slog.Leveler, debug bool) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{
		out:    file,
		stderr: os.Stderr,
		level:  level,
		mu:     &sync.Mutex{},
		debug:  debug,
	}
}
