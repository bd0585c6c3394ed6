package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in).String(); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPlainHandlerHidesMetaKeys(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(LogLevelDebug, &buf).WithComponent("router").WithChat("c1")

	l.InfoWithIntention(IntentionConnection, "session open", "attempts", 0)

	line := buf.String()
	if !strings.HasPrefix(line, iconFor(IntentionConnection)+" session open") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "attempts=0") {
		t.Errorf("missing attrs: %q", line)
	}
	for _, hidden := range []string{"component=", "chat=", "intention="} {
		if strings.Contains(line, hidden) {
			t.Errorf("line should not contain %s: %q", hidden, line)
		}
	}
}

func TestPlainHandlerLevelTags(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(LogLevelWarn, &buf)

	l.Info("dropped")
	l.Warn("careful", "k", "v")
	l.Error("broken")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] careful k=v") {
		t.Errorf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] broken") {
		t.Errorf("missing error line: %q", out)
	}
}
