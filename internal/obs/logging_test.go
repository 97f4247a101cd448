package obs

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARN, &buf)
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("INFO message leaked through a WARN-level logger: %q", buf.String())
	}
	l.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("WARN message missing from output: %q", buf.String())
	}
}

func TestWithFieldsIncludesInOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(DEBUG, &buf).WithField("component", "test")
	l.Info("hello")
	if !strings.Contains(buf.String(), "component=test") {
		t.Fatalf("attached field missing from output: %q", buf.String())
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(DEBUG, &buf)
	_ = parent.WithField("a", 1)
	parent.Info("plain")
	if strings.Contains(buf.String(), "a=1") {
		t.Fatalf("WithField leaked into the parent logger's output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DEBUG, "INFO": INFO, "warning": WARN, "ERROR": ERROR, "fatal": FATAL,
	}
	for s, want := range cases {
		if got := ParseLevel(s); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
	if got := ParseLevel("nonsense"); got != INFO {
		t.Fatalf("ParseLevel of unknown value = %v, want INFO default", got)
	}
}

func TestAccessLogger(t *testing.T) {
	var buf bytes.Buffer
	al := NewAccessLogger(New(DEBUG, &buf))
	al.LogAccess("GET", "/health", "200", 0, nil)
	if !strings.Contains(buf.String(), "/health") {
		t.Fatalf("access log missing path: %q", buf.String())
	}
}
