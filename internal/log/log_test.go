package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Info("hidden message")
	Warn("rule skipped", "event_id", "ev-1", "rule_index", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden message")
	assert.Contains(t, out, "rule skipped")
	assert.Contains(t, out, "ev-1")
	assert.Contains(t, out, "WARN")
}

func TestErrorIncludesErr(t *testing.T) {
	buf := captureOutput(t)

	Error("sync failed", errors.New("boom"), "source", "work")

	out := buf.String()
	assert.Contains(t, out, "sync failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "work")
}

func TestMalformedPairsDropped(t *testing.T) {
	buf := captureOutput(t)

	Info("odd args", 42, "value", "dangling")

	out := buf.String()
	assert.Contains(t, out, "odd args")
	assert.NotContains(t, out, "dangling")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warn "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
