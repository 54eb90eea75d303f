package internal

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"ERROR", LogLevelError},
		{"warn", LogLevelWarn},
		{" DEBUG ", LogLevelDebug},
		{"TRACE", LogLevelTrace},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestNamedLoggerPrefixAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	logger := NewLogger(LogLevelWarn).Named("Sampler")
	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected INFO to be filtered at WARN level, got %q", out)
	}
	if !strings.Contains(out, "[WARN] [Sampler] shown 2") {
		t.Errorf("Expected prefixed warning, got %q", out)
	}
}
