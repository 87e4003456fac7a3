package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townchat/backend/internal/config"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarning, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("FATAL"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelWarning)

	Infof("hidden %d", 1)
	Warningf("shown %d", 2)
	Errorf("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARNING: shown 2")
	assert.Contains(t, out, "ERROR: shown 3")
}

func TestSetupCreatesLogFile(t *testing.T) {
	_ = captureLog(t)
	dir := filepath.Join(t.TempDir(), "logs")

	closer, err := Setup(config.LoggerConfig{
		Directory: dir,
		Prefix:    "test",
		Level:     "DEBUG",
		Rotation:  config.LogRotationConfig{MaxSize: 1, MaxBackups: 1, MaxAge: 1},
	})
	require.NoError(t, err)

	Debugf("debug line")
	require.NoError(t, closer.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEBUG: debug line")
}
