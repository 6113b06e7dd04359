package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	infoCalled  bool
	debugCalled bool
	warnCalled  bool
	errorCalled bool
	lastMsg     string
	lastFields  map[string]any
	lastErr     error
}

func (m *mockLogger) Info(_ context.Context, msg string, fields map[string]any) {
	m.infoCalled = true
	m.lastMsg = msg
	m.lastFields = fields
}

func (m *mockLogger) Debug(_ context.Context, msg string, fields map[string]any) {
	m.debugCalled = true
	m.lastMsg = msg
	m.lastFields = fields
}

func (m *mockLogger) Warn(_ context.Context, msg string, fields map[string]any) {
	m.warnCalled = true
	m.lastMsg = msg
	m.lastFields = fields
}

func (m *mockLogger) Error(_ context.Context, msg string, err error, fields map[string]any) {
	m.errorCalled = true
	m.lastMsg = msg
	m.lastErr = err
	m.lastFields = fields
}

func TestNewZapAdapter(t *testing.T) {
	mock := &mockLogger{}
	adapter := NewZapAdapter(mock)

	assert.NotNil(t, adapter)
}

func TestZapAdapter_Info(t *testing.T) {
	mock := &mockLogger{}
	adapter := NewZapAdapter(mock)
	ctx := context.Background()
	fields := map[string]any{"key": "value"}

	adapter.Info(ctx, "test message", fields)

	assert.True(t, mock.infoCalled)
	assert.Equal(t, "test message", mock.lastMsg)
	assert.Equal(t, fields, mock.lastFields)
}

func TestZapAdapter_Debug(t *testing.T) {
	mock := &mockLogger{}
	adapter := NewZapAdapter(mock)
	ctx := context.Background()
	fields := map[string]any{"debug": true}

	adapter.Debug(ctx, "debug message", fields)

	assert.True(t, mock.debugCalled)
	assert.Equal(t, "debug message", mock.lastMsg)
	assert.Equal(t, fields, mock.lastFields)
}

func TestZapAdapter_Warn(t *testing.T) {
	mock := &mockLogger{}
	adapter := NewZapAdapter(mock)
	ctx := context.Background()
	fields := map[string]any{"warning": "test"}

	adapter.Warn(ctx, "warn message", fields)

	assert.True(t, mock.warnCalled)
	assert.Equal(t, "warn message", mock.lastMsg)
	assert.Equal(t, fields, mock.lastFields)
}

func TestZapAdapter_Error(t *testing.T) {
	mock := &mockLogger{}
	adapter := NewZapAdapter(mock)
	ctx := context.Background()
	testErr := assert.AnError
	fields := map[string]any{"error_context": "test"}

	adapter.Error(ctx, "error message", testErr, fields)

	assert.True(t, mock.errorCalled)
	assert.Equal(t, "error message", mock.lastMsg)
	assert.Equal(t, testErr, mock.lastErr)
	assert.Equal(t, fields, mock.lastFields)
}

func TestZapAdapter_WithAddsDefaults(t *testing.T) {
	mock := &mockLogger{}
	adapter := NewZapAdapter(mock).With(map[string]any{"command": "blame", "root": "/repo"})

	adapter.Info(context.Background(), "parsed", map[string]any{"commits": 3})

	assert.Equal(t, map[string]any{"command": "blame", "root": "/repo", "commits": 3}, mock.lastFields)
}

func TestZapAdapter_CallFieldsOverrideDefaults(t *testing.T) {
	mock := &mockLogger{}
	adapter := NewZapAdapter(mock).With(map[string]any{"command": "log"})

	adapter.Error(context.Background(), "failed", assert.AnError, map[string]any{"command": "log --export"})

	assert.Equal(t, map[string]any{"command": "log --export"}, mock.lastFields)
	assert.Equal(t, assert.AnError, mock.lastErr)
}

func TestZapAdapter_WithDoesNotMutate(t *testing.T) {
	mock := &mockLogger{}
	base := NewZapAdapter(mock)
	defaults := map[string]any{"root": "/repo"}
	child := base.With(defaults)
	grandchild := child.With(map[string]any{"command": "changes"})

	callFields := map[string]any{"paths": 2}
	grandchild.Warn(context.Background(), "warn", callFields)

	assert.Equal(t, map[string]any{"root": "/repo"}, defaults)
	assert.Equal(t, map[string]any{"paths": 2}, callFields)
	assert.Equal(t, map[string]any{"root": "/repo", "command": "changes", "paths": 2}, mock.lastFields)

	base.Debug(context.Background(), "plain", nil)
	assert.Nil(t, mock.lastFields)

	child.Debug(context.Background(), "child", nil)
	assert.Equal(t, map[string]any{"root": "/repo"}, mock.lastFields)
}
