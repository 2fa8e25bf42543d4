package utils

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestTimer_Stop(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	timer := NewTimer("build_matrix", log)
	timer.now = func() time.Time { return timer.start.Add(250 * time.Millisecond) }

	assert.Equal(t, 250*time.Millisecond, timer.Stop())

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "build_matrix", entry["operation"])
}

func TestTimer_SlowOperationWarns(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	timer := NewTimer("backtest", log)
	timer.now = func() time.Time { return timer.start.Add(SlowOperationThreshold + time.Second) }
	timer.StopWithFields(map[string]interface{}{"holdings": 3})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, float64(3), entry["holdings"])
}

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	OperationTimer("sweep", log)()

	entry := decodeLine(t, &buf)
	assert.Equal(t, "sweep", entry["operation"])
}
