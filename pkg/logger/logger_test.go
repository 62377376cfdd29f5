package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/pkg/config"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewSetsGlobalLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, log)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input), tt.input)
	}
}

func TestFieldsAndComponent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.WithComponent("stream").
		WithFields(map[string]interface{}{"attempt": 2, "url": "ws://x"}).
		WithField("conn_id", "abc").
		Warnf("reconnect in %s", "5s")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "stream", entry["component"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "abc", entry["conn_id"])
	assert.Equal(t, "reconnect in 5s", entry["message"])
}

func TestWithRequestID(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer

	NewWithWriter(&buf).WithRequestID("req-1").Info("History fetch started")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestWithError(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.WithError(errors.New("upstream unavailable")).Error("fetch failed")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "upstream unavailable", entry["error"])
	assert.Equal(t, "fetch failed", entry["message"])
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithField("k", "v").Info("ignored")
	})
}

func TestLogFileRotationTarget(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	path := filepath.Join(t.TempDir(), "riskdash.log")

	log := New(&config.Config{Env: "development", LogLevel: "info", LogFormat: "json", LogFile: path})
	log.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
