package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		want  []string
		skip  []string
	}{
		{LevelError, []string{"ERROR"}, []string{"WARN", "INFO", "DEBUG"}},
		{LevelWarn, []string{"ERROR", "WARN"}, []string{"INFO", "DEBUG"}},
		{LevelInfo, []string{"ERROR", "WARN", "INFO"}, []string{"DEBUG"}},
		{LevelDebug, []string{"ERROR", "WARN", "INFO", "DEBUG"}, nil},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		l := NewLogger(&buf, tt.level)
		l.Errorf("e")
		l.Warnf("w")
		l.Infof("i")
		l.Debugf("d")

		out := buf.String()
		for _, want := range tt.want {
			if !strings.Contains(out, want) {
				t.Errorf("level %s: output missing %s", tt.level, want)
			}
		}
		for _, skip := range tt.skip {
			if strings.Contains(out, skip) {
				t.Errorf("level %s: output should not contain %s", tt.level, skip)
			}
		}
	}
}

func TestLevel_String(t *testing.T) {
	if LevelError.String() != "ERROR" || LevelDebug.String() != "DEBUG" {
		t.Error("unexpected level names")
	}
	if Level(99).String() != "UNKNOWN" {
		t.Error("out-of-range level should be UNKNOWN")
	}
}

func TestIsNil_TypedNil(t *testing.T) {
	var typed *DefaultLogger
	var iface Logger = typed

	if !IsNil(nil) {
		t.Error("IsNil(nil) = false")
	}
	if !IsNil(iface) {
		t.Error("IsNil(typed-nil) = false")
	}
	if IsNil(Discard) {
		t.Error("IsNil(Discard) = true")
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) == nil {
		t.Fatal("OrDefault(nil) returned nil")
	}
	if got := OrDefault(Discard); got != Discard {
		t.Error("OrDefault should keep a valid logger")
	}
}
