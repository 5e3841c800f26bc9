package logger

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestGetLogger(t *testing.T) {
	logger := GetLogger()
	assert.NotNil(t, logger)
	assert.IsType(t, &logrus.Logger{}, logger)
}

func TestWithName(t *testing.T) {
	entry := WithName("test-logger")
	assert.NotNil(t, entry)
	assert.Equal(t, "test-logger", entry.Data["name"])
}

func TestWithFields(t *testing.T) {
	entry := WithFields(logrus.Fields{"tool": "echo", "stored": 3})
	assert.Equal(t, "echo", entry.Data["tool"])
	assert.Equal(t, 3, entry.Data["stored"])
}

func TestIsLevelEnabled(t *testing.T) {
	originalLevel := defaultLogger.Level
	defer SetLevel(originalLevel)

	SetLevel(logrus.DebugLevel)
	assert.True(t, IsLevelEnabled(logrus.DebugLevel))
	assert.False(t, IsLevelEnabled(logrus.TraceLevel))

	SetLevel(logrus.ErrorLevel)
	assert.False(t, IsLevelEnabled(logrus.InfoLevel))
	assert.True(t, IsLevelEnabled(logrus.ErrorLevel))
}

func TestSetOutput(t *testing.T) {
	originalOut := defaultLogger.Out
	originalLevel := defaultLogger.Level
	defer func() {
		SetOutput(originalOut)
		SetLevel(originalLevel)
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(logrus.InfoLevel)

	WithName("server").Info("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "name=server")
}

func TestConfigureFromString(t *testing.T) {
	originalLevel := defaultLogger.Level
	originalOut := defaultLogger.Out
	defer func() {
		SetLevel(originalLevel)
		SetOutput(originalOut)
	}()

	t.Run("test mode silences output", func(t *testing.T) {
		t.Setenv("GO_ENV", "test")
		assert.NoError(t, ConfigureFromString("debug"))
		assert.Equal(t, io.Discard, defaultLogger.Out)
	})

	t.Run("silent", func(t *testing.T) {
		t.Setenv("GO_ENV", "")
		SetOutput(os.Stderr)
		assert.NoError(t, ConfigureFromString("silent"))
		assert.Equal(t, io.Discard, defaultLogger.Out)
	})

	t.Run("valid levels", func(t *testing.T) {
		t.Setenv("GO_ENV", "")
		for _, level := range []string{"trace", "debug", "info", "warn", "error"} {
			assert.NoError(t, ConfigureFromString(level), "level %s", level)
		}
		assert.NoError(t, ConfigureFromString("DEBUG"))
		assert.Equal(t, logrus.DebugLevel, defaultLogger.Level)
	})

	t.Run("invalid level", func(t *testing.T) {
		t.Setenv("GO_ENV", "")
		assert.Error(t, ConfigureFromString("loud"))
	})
}
