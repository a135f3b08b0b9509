package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelGating(t *testing.T) {
	tests := []struct {
		level   int
		isInfo  bool
		isDebug bool
	}{
		{LevelQuiet, false, false},
		{LevelInfo, true, false},
		{LevelDebug, true, true},
		{LevelTrace, true, true},
	}

	var buf bytes.Buffer
	for _, tt := range tests {
		Initialize(tt.level, &buf)
		if IsInfo() != tt.isInfo {
			t.Errorf("level %d: IsInfo() = %v, want %v", tt.level, IsInfo(), tt.isInfo)
		}
		if IsDebug() != tt.isDebug {
			t.Errorf("level %d: IsDebug() = %v, want %v", tt.level, IsDebug(), tt.isDebug)
		}
	}
}

func TestQuietSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelQuiet, &buf)

	Info("hidden", "key", "value")
	if buf.Len() != 0 {
		t.Errorf("quiet mode should drop info logs, got %q", buf.String())
	}

	Warn("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("warnings must always appear, got %q", buf.String())
	}
}

func TestAllLevelsEmit(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelTrace, &buf)

	Info("i")
	Debug("d")
	Trace("t")
	Warn("w")
	Error("e")

	for _, msg := range []string{"i", "d", "t", "w", "e"} {
		if !strings.Contains(buf.String(), "msg="+msg) {
			t.Errorf("missing %q in output: %q", msg, buf.String())
		}
	}
}

func TestProgressLineIsPreservedByLogs(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelInfo, &buf)

	Progress("fetching %d/%d", 1, 2)
	Info("interleaved")
	if !strings.Contains(buf.String(), "\n") {
		t.Error("a log after a progress line should start on a fresh line")
	}

	Progress("fetching %d/%d", 2, 2)
	ProgressDone()
	if !strings.Contains(buf.String(), " done") {
		t.Errorf("expected completed progress line, got %q", buf.String())
	}
}
