package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_LevelFallback(t *testing.T) {
	logger := NewWithOutput("not-a-level", "text", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger = NewWithOutput("debug", "text", &bytes.Buffer{})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestLogError_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("info", "json", &buf)

	LogError(logger, "demand", "Optimize", "fit", map[string]string{"item": "Latte"}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "demand", entry["module"])
	assert.Equal(t, "Optimize", entry["funcName"])
	assert.Equal(t, "fit", entry["context"])
	assert.NotNil(t, entry["data"])
}

func TestLogError_NilErrorIsNoop(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("info", "json", &buf)
	LogError(logger, "m", "f", "c", nil, nil)
	assert.Zero(t, buf.Len())
}
