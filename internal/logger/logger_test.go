package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: WARN, Mode: MINIMAL, Output: &buf})
	require.NoError(t, err)

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN] shown 2")
}

func TestNamedSharesSink(t *testing.T) {
	var buf bytes.Buffer
	root, err := New(Config{Level: DEBUG, Mode: MINIMAL, Output: &buf})
	require.NoError(t, err)

	child := root.Named("dedup").Named("history")
	child.Debug("swept %d", 3)

	assert.Contains(t, buf.String(), "[DEBUG] [dedup.history] swept 3")

	root.SetLevel(ERROR)
	child.Info("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: INFO, Mode: NORMAL, Output: &buf})
	require.NoError(t, err)

	code := -1
	log.sink.exit = func(c int) { code = c }
	log.Fatal("boom")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "boom")
}

func TestParseLevelAndMode(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
	assert.Equal(t, FULL, ParseMode("Full"))
	assert.Equal(t, NORMAL, ParseMode(""))
}
