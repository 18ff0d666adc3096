package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
		ok       bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"warn", WarnLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"fatal", FatalLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.name)
			assert.Equal(t, tt.expected, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSlogWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, false)

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.With("device", "/dev/ttyUSB0").Info("port opened", "baud", 115200)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "port opened", rec["msg"])
	assert.Equal(t, "/dev/ttyUSB0", rec["device"])
	assert.InDelta(t, 115200, rec["baud"], 0)
	assert.Contains(t, rec, "ts")
}

func TestSlogWriter_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, ErrorLevel, false, false)
	assert.Equal(t, ErrorLevel, l.Level())

	child := l.With("k", "v")
	l.SetLevel(DebugLevel)

	// the child shares the level with its parent
	assert.Equal(t, DebugLevel, child.Level())
	child.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSlogWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, true)

	l.Warn("cannot resend", "requested", 4)
	assert.Contains(t, buf.String(), "cannot resend")
}

func TestZap(t *testing.T) {
	var buf bytes.Buffer
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	l := NewZap(enc, zapcore.AddSync(&buf), InfoLevel)

	assert.Equal(t, InfoLevel, l.Level())
	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.With("device", "sim").Warn("cannot resend", "requested", 4)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "cannot resend", rec["msg"])
	assert.Equal(t, "sim", rec["device"])

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
}

func TestDefaultLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	var buf bytes.Buffer
	SetLogger(NewSlogWriter(&buf, InfoLevel, false, false))
	SetLogger(nil)

	Info("through default")
	assert.Contains(t, buf.String(), "through default")
}

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l, closer, err := New(&buf, Options{Level: InfoLevel, Format: FormatJSON})
		require.NoError(t, err)
		assert.Nil(t, closer)

		l.Info("serial port opened")
		assert.Contains(t, buf.String(), `"msg":"serial port opened"`)
	})

	t.Run("zap", func(t *testing.T) {
		var buf bytes.Buffer
		l, _, err := New(&buf, Options{Level: WarnLevel, Format: FormatZap})
		require.NoError(t, err)

		l.Info("hidden")
		l.Warn("cannot resend line")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "cannot resend line", rec["msg"])
		assert.Contains(t, rec, "ts")
	})

	t.Run("rotated file", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "logs", "sender.log")
		l, closer, err := New(&buf, Options{Level: InfoLevel, Format: FormatJSON, File: FileOutput{Path: path, MaxSize: 1}})
		require.NoError(t, err)
		require.NotNil(t, closer)

		l.Info("to file")
		require.NoError(t, closer.Close())
		assert.Zero(t, buf.Len())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := New(&bytes.Buffer{}, Options{Format: "xml"})
		require.Error(t, err)

		_, err = ParseFormat("xml")
		require.Error(t, err)
	})
}

func TestMockLogger_Messages(t *testing.T) {
	ml := NewMockLogger().AllowAll()

	child := ml.With("device", "sim")
	child.Warn("first", "k", 1)
	ml.Info("other")
	ml.Warn("second")

	assert.Equal(t, []string{"first", "second"}, ml.Messages("Warn"))
	assert.Equal(t, []string{"other"}, ml.Messages("Info"))
	assert.Empty(t, ml.Messages("Error"))
}
