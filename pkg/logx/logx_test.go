package logx

import (
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("assistant")
	if logger == nil {
		t.Fatal("Expected NewLogger to return non-nil logger")
	}
	if logger.component != "assistant" {
		t.Errorf("Expected component 'assistant', got '%s'", logger.component)
	}
}

func TestDebugDisabledByDefault(t *testing.T) {
	SetDebugConfig(false, false, "")
	if IsDebugEnabled() {
		t.Error("Expected debug to be disabled")
	}
	if IsDebugEnabledForDomain("assistant") {
		t.Error("Expected domain debug to be disabled when debug is off")
	}
}

func TestDomainFiltering(t *testing.T) {
	SetDebugConfig(true, false, "")
	defer SetDebugConfig(false, false, "")

	debugMutex.Lock()
	debugConfig.Domains = map[string]bool{"srs": true}
	debugMutex.Unlock()
	defer func() {
		debugMutex.Lock()
		debugConfig.Domains = nil
		debugMutex.Unlock()
	}()

	if !IsDebugEnabledForDomain("srs") {
		t.Error("Expected srs domain to be enabled")
	}
	if IsDebugEnabledForDomain("assistant") {
		t.Error("Expected assistant domain to be disabled")
	}
}

func TestLogBufferCapture(t *testing.T) {
	logger := NewLogger("buffer-test")
	start := time.Now().UTC().Add(-time.Second)

	logger.Info("hello %s", "world")

	entries := GetRecentLogEntries("buffer-test", start)
	if len(entries) == 0 {
		t.Fatal("Expected at least one buffered entry")
	}

	last := entries[len(entries)-1]
	if last.Message != "hello world" {
		t.Errorf("Expected message 'hello world', got '%s'", last.Message)
	}
	if last.Level != string(LevelInfo) {
		t.Errorf("Expected level INFO, got '%s'", last.Level)
	}
}

func TestBufferEviction(t *testing.T) {
	small := &ringBuffer{maxSize: 3}
	for i := 0; i < 5; i++ {
		small.add(LogEntry{Message: "entry"})
	}
	if len(small.entries) != 3 {
		t.Errorf("Expected buffer capped at 3 entries, got %d", len(small.entries))
	}
}
