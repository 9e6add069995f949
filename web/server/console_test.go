package server

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestConsole() (*ConsoleHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewConsoleHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})), &buf
}

func TestConsoleHandler_BasicLogging(t *testing.T) {
	handler, buf := newTestConsole()
	messages, unsubscribe := handler.Subscribe(10)
	defer unsubscribe()

	logger := slog.New(handler).With("render_id", "test-render-123")
	logger.Info("wave started", "wave", 2)

	select {
	case msg := <-messages:
		expected := "wave started render_id=test-render-123 wave=2"
		if msg.Message != expected {
			t.Errorf("Expected message '%s', got '%s'", expected, msg.Message)
		}
		if msg.Level != "info" {
			t.Errorf("Expected level 'info', got '%s'", msg.Level)
		}
		if time.Since(msg.Timestamp) > time.Second {
			t.Errorf("Timestamp seems too old: %v", msg.Timestamp)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for console message")
	}

	if !strings.Contains(buf.String(), "msg=\"wave started\"") {
		t.Errorf("Expected the next handler to receive the record, got %q", buf.String())
	}
}

func TestConsoleHandler_Groups(t *testing.T) {
	handler, _ := newTestConsole()
	messages, unsubscribe := handler.Subscribe(10)
	defer unsubscribe()

	slog.New(handler).WithGroup("tile").With("id", 4).Warn("stuck", "wave", 3)

	msg := <-messages
	if msg.Message != "stuck tile.id=4 tile.wave=3" {
		t.Errorf("Expected grouped attributes, got '%s'", msg.Message)
	}
	if msg.Level != "warn" {
		t.Errorf("Expected level 'warn', got '%s'", msg.Level)
	}
}

func TestConsoleHandler_MultipleSubscribers(t *testing.T) {
	handler, _ := newTestConsole()
	a, unsubscribeA := handler.Subscribe(10)
	b, unsubscribeB := handler.Subscribe(10)
	defer unsubscribeB()

	logger := slog.New(handler)
	logger.Info("first")
	unsubscribeA()
	unsubscribeA()
	logger.Info("second")

	if len(a) != 1 {
		t.Errorf("Expected 1 message after unsubscribing, got %d", len(a))
	}
	if len(b) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(b))
	}
}

func TestConsoleHandler_ChannelFull(t *testing.T) {
	handler, _ := newTestConsole()
	messages, unsubscribe := handler.Subscribe(1)
	defer unsubscribe()

	logger := slog.New(handler)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			logger.Info("message")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Logger blocked on a full console channel")
	}
	if len(messages) != 1 {
		t.Errorf("Expected 1 buffered message, got %d", len(messages))
	}
}

func TestConsoleHandler_LevelFromNext(t *testing.T) {
	handler, _ := newTestConsole()
	messages, unsubscribe := handler.Subscribe(10)
	defer unsubscribe()

	slog.New(handler).Debug("hidden")
	if len(messages) != 0 {
		t.Errorf("Expected debug records to be filtered, got %d", len(messages))
	}
}
