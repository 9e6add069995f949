package server

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warn", "error"
}

// ConsoleHandler is a slog.Handler that passes every record to the next handler and
// also fans it out to console subscribers. Slow subscribers miss messages rather than
// blocking the logger.
type ConsoleHandler struct {
	next   slog.Handler
	attrs  []slog.Attr
	hub    *consoleHub
	groups string
}

type consoleHub struct {
	mu          sync.Mutex
	subscribers map[chan ConsoleMessage]struct{}
}

// NewConsoleHandler wraps next
func NewConsoleHandler(next slog.Handler) *ConsoleHandler {
	return &ConsoleHandler{
		next: next,
		hub:  &consoleHub{subscribers: make(map[chan ConsoleMessage]struct{})},
	}
}

// Subscribe returns a channel of console messages and a function that ends the subscription
func (h *ConsoleHandler) Subscribe(buffer int) (<-chan ConsoleMessage, func()) {
	ch := make(chan ConsoleMessage, buffer)
	h.hub.mu.Lock()
	h.hub.subscribers[ch] = struct{}{}
	h.hub.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.hub.mu.Lock()
			delete(h.hub.subscribers, ch)
			h.hub.mu.Unlock()
		})
	}
}

func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	h.broadcast(ConsoleMessage{
		Message:   h.format(r),
		Timestamp: r.Time,
		Level:     strings.ToLower(r.Level.String()),
	})
	return h.next.Handle(ctx, r)
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &c
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	c.groups = h.groups + name + "."
	return &c
}

func (h *ConsoleHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.groups == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.groups + a.Key, Value: a.Value}
	}
	return out
}

// format renders "message key=value ..." in record order
func (h *ConsoleHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		return write(slog.Attr{Key: h.groups + a.Key, Value: a.Value})
	})
	return b.String()
}

func (h *ConsoleHandler) broadcast(msg ConsoleMessage) {
	h.hub.mu.Lock()
	defer h.hub.mu.Unlock()
	for ch := range h.hub.subscribers {
		select {
		case ch <- msg:
		default:
			// Channel full, skip (don't block)
		}
	}
}
