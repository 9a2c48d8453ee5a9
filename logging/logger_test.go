package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*MeshLogger)(nil)
	_ Logger = NoOpLogger{}
)

func newBufferedLogger(level LogLevel) (*MeshLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&LoggerConfig{Level: level, Format: "json", Output: buf, Component: "test"})
	return logger, buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestMeshLoggerAttachesAttributes(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.WithConversation("conv-1", "req-1").Info("dispatch started", "agent_id", "billing_agent")

	entry := lastEntry(t, buf)
	assert.Equal(t, "dispatch started", entry["msg"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "conv-1", entry["conversation_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "billing_agent", entry["agent_id"])
}

func TestMeshLoggerRespectsLevel(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelWarn)

	logger.Info("too quiet")
	assert.Zero(t, buf.Len())

	logger.Warn("loud enough")
	assert.NotZero(t, buf.Len())
}

func TestMeshLoggerCloneIsolation(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	child := logger.WithContext("intent", "check_balance")
	logger.Info("parent entry")

	entry := lastEntry(t, buf)
	_, hasIntent := entry["intent"]
	assert.False(t, hasIntent, "parent must not inherit child context")

	child.Info("child entry")
	entry = lastEntry(t, buf)
	assert.Equal(t, "check_balance", entry["intent"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LogLevelInfo, ParseLevel("unknown"))
}

func TestLogClassification(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.LogClassification("check_balance", 0.83, false, 0)

	entry := lastEntry(t, buf)
	assert.Equal(t, "Classification completed", entry["msg"])
	assert.Equal(t, "check_balance", entry["intent"])
	assert.Equal(t, 0.83, entry["confidence"])
}
