package logsink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LevelFatal marks records that precede a supervisor exit.
const LevelFatal = slog.Level(12)

// Stream tags used by Mirror in place of a level.
const (
	TagStdin  = "STDIN"
	TagStderr = "STDERR"
)

// Options controls how a Logger formats and echoes records.
type Options struct {
	// Name is printed in every line after the timestamp.
	Name string
	// Echo receives records at or above EchoLevel. Nil disables echo.
	Echo      io.Writer
	EchoLevel slog.Level
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

type core struct {
	mu        sync.Mutex
	sink      Sink
	sinkDown  bool
	echo      io.Writer
	echoLevel slog.Level
	name      string
	now       func() time.Time
	closeOnce sync.Once
	closeErr  error
}

// Handler is a slog.Handler that renders records as
//
//	[<timestamp>] [<name>] [<LEVEL>] <message> key=value...
//
// and sanitizes the rendered line before it reaches the durable sink or the
// echo writer. Every record is persisted; only the echo is filtered by level.
type Handler struct {
	core   *core
	attrs  []slog.Attr
	prefix string
}

// NewHandler constructs a handler writing to sink.
func NewHandler(sink Sink, opts Options) *Handler {
	if sink == nil {
		sink = NopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{core: &core{
		sink:      sink,
		echo:      opts.Echo,
		echoLevel: opts.EchoLevel,
		name:      opts.Name,
		now:       now,
	}}
}

// Enabled reports true for every level: the durable sink receives everything.
func (h *Handler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})

	line := h.core.format(h.core.now(), levelName(r.Level), Sanitize(b.String()))
	h.core.write(line, r.Level >= h.core.echoLevel)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	dup := &Handler{core: h.core, prefix: h.prefix}
	dup.attrs = append(append([]slog.Attr(nil), h.attrs...), prefixAttrs(h.prefix, attrs)...)
	return dup
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{core: h.core, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// Mirror appends sanitized stream content to the durable sink under the given
// tag. Mirrored content is never echoed.
func (h *Handler) Mirror(tag string, data []byte) {
	text := strings.TrimSuffix(string(data), "\n")
	line := h.core.format(h.core.now(), tag, Sanitize(text))
	h.core.write(line, false)
}

// Close closes the durable sink once. Later records are still echoed.
func (h *Handler) Close() error {
	c := h.core
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeErr = c.sink.Close()
		c.sinkDown = true
	})
	return c.closeErr
}

// Path reports the durable destination, or "" when records are discarded.
func (h *Handler) Path() string {
	return h.core.sink.Path()
}

func (c *core) format(ts time.Time, tag, message string) string {
	return fmt.Sprintf("[%s] [%s] [%s] %s\n", ts.UTC().Format(time.RFC3339Nano), c.name, tag, message)
}

func (c *core) write(line string, echo bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sinkDown {
		if _, err := io.WriteString(c.sink, line); err != nil {
			c.sinkDown = true
			if c.echo != nil && !errors.Is(err, ErrClosed) {
				fmt.Fprintf(c.echo, "[ERROR] Log file error: %v\n", err)
			}
		}
	}
	if echo && c.echo != nil {
		_, _ = io.WriteString(c.echo, line)
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= LevelFatal:
		return "FATAL"
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func prefixAttrs(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := prefix
		if a.Key != "" {
			group += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, group, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(quoteIfNeeded(a.Value.String()))
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
