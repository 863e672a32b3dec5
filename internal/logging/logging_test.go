package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Format: FormatJSON, Level: LevelInfo})
	logger.Info("test message", slog.String(SenderKey, "catalog"))

	assert.Contains(t, buf.String(), `"msg":"test message"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"sender":"catalog"`)
}

func TestNew_CustomLevelNames(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Format: FormatJSON, Level: LevelTrace})
	logger.Log(context.Background(), LevelTrace, "tiny")
	logger.Log(context.Background(), LevelCritical, "huge")

	assert.Contains(t, buf.String(), `"level":"TRACE"`)
	assert.Contains(t, buf.String(), `"level":"CRITICAL"`)
}

func TestNew_PrettyIsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Level: LevelInfo})
	logger.Info("hello", "key1", "value1", "key2", 42)

	output := buf.String()
	assert.Contains(t, output, "hello")
	assert.Contains(t, output, "key1=value1")
	assert.Contains(t, output, "key2=42")
	assert.Contains(t, output, "INF")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarning},
		{"Warning", LevelWarning},
		{"error", LevelError},
		{"critical", LevelCritical},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "TRACE", LevelName(LevelTrace))
	assert.Equal(t, "DEBUG", LevelName(LevelDebug))
	assert.Equal(t, "INFO", LevelName(LevelInfo))
	assert.Equal(t, "WARNING", LevelName(LevelWarning))
	assert.Equal(t, "ERROR", LevelName(LevelError))
	assert.Equal(t, "CRITICAL", LevelName(LevelCritical))
}

func TestPrettyHandler_Enabled(t *testing.T) {
	tests := []struct {
		name         string
		handlerLevel slog.Level
		checkLevel   slog.Level
		wantEnabled  bool
	}{
		{name: "trace handler allows trace", handlerLevel: LevelTrace, checkLevel: LevelTrace, wantEnabled: true},
		{name: "info handler blocks debug", handlerLevel: LevelInfo, checkLevel: LevelDebug, wantEnabled: false},
		{name: "info handler allows critical", handlerLevel: LevelInfo, checkLevel: LevelCritical, wantEnabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: tt.handlerLevel})
			assert.Equal(t, tt.wantEnabled, handler.Enabled(context.Background(), tt.checkLevel))
		})
	}
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil)).With("run", "abc").WithGroup("search")
	logger.Info("page", "start", 11)

	output := buf.String()
	assert.Contains(t, output, "run=abc")
	assert.Contains(t, output, "search.start=11")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), LevelCritical))
}
