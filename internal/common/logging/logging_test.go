package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != log.DebugLevel {
		t.Errorf("expected debug level")
	}
	if ParseLevel(" WARN ") != log.WarnLevel {
		t.Errorf("expected warn level")
	}
	if ParseLevel("nonsense") != log.InfoLevel {
		t.Errorf("unknown levels should fall back to info")
	}
}

func TestComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(&buf, log.InfoLevel), "autosave")
	l.Info("saved", "document", "doc-1")

	out := buf.String()
	if !strings.Contains(out, "autosave") || !strings.Contains(out, "doc-1") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard()
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatalf("expected logger from context")
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
}
