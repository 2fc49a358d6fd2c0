package security

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	r := &Redactor{}
	r.AddLiteral("hunter22")
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactingHandler(inner, r))
}

func TestRedactingHandler_Message(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newTestLogger(&buf, slog.LevelInfo).Info("password is hunter22")

	if strings.Contains(buf.String(), "hunter22") {
		t.Errorf("secret leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), RedactPlaceholder) {
		t.Errorf("placeholder missing: %s", buf.String())
	}
}

func TestRedactingHandler_Attrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo).With("auth", "hunter22")
	logger.WithGroup("req").Info("call",
		"error", errors.New("dial failed: hunter22"),
		slog.Group("headers", "x-key", "hunter22"),
		"session", "abc",
	)

	out := buf.String()
	if strings.Contains(out, "hunter22") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "req.session=abc") {
		t.Errorf("group attrs not preserved: %s", out)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
}
