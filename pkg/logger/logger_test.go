package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormatCarriesComponent(t *testing.T) {
	log, err := New(LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Named("engine").WithField("target", "game").Info("switching")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "game", line["target"])
	assert.Equal(t, "switching", line["msg"])
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New(LoggingConfig{Format: "xml"})
	assert.Error(t, err)

	_, err = New(LoggingConfig{Output: "syslog"})
	assert.Error(t, err)
}

func TestNewDefault(t *testing.T) {
	log := NewDefault("store")
	assert.Equal(t, "store", log.Component())

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.Debug("hidden")
	assert.Empty(t, buf.String())
	log.WithError(assert.AnError).Warn("visible")
	assert.Contains(t, buf.String(), "component=store")
}

func TestLevelMethodsCarryComponent(t *testing.T) {
	log, err := New(LoggingConfig{Format: "json"})
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Named("cli").Info("shutting down")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cli", line["component"])
	assert.Equal(t, "shutting down", line["msg"])

	buf.Reset()
	log.Named("cli").Warnf("retry %d", 2)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cli", line["component"])
	assert.Equal(t, "retry 2", line["msg"])
}

func TestNew_FileOutputClose(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "logs", "mode")
	log, err := New(LoggingConfig{Output: "file", FilePrefix: prefix})
	require.NoError(t, err)

	log.Named("engine").Info("to file")
	require.NoError(t, log.Named("engine").Close(), "derived loggers do not own the file")
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	matches, err := filepath.Glob(prefix + "-*.log")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=engine")
	assert.Contains(t, string(data), "to file")
}
