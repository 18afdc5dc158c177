package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2021, 6, 26, 11, 52, 0, 0, time.UTC)
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WARN, false)
	l.SetOutput(&buf)
	l.now = fixedClock

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("skipping record", map[string]interface{}{"job_id": "42", "node_spec": "a[1-"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, "[2021-06-26 11:52:00] WARN: skipping record job_id=42 node_spec=a[1-\n", out)
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(DEBUG, true)
	l.SetOutput(&buf)
	l.now = fixedClock

	l.WithField("component", "squeue").Debug("running command")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "running command", entry.Message)
	assert.Equal(t, "squeue", entry.Fields["component"])
	assert.Equal(t, "2021-06-26T11:52:00Z", entry.Timestamp)
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(INFO, false)
	parent.SetOutput(&buf)
	parent.now = fixedClock

	_ = parent.WithField("k", "v")
	parent.Info("plain")

	assert.False(t, strings.Contains(buf.String(), "k=v"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"warning", WARN, false},
		{"", WARN, false},
		{"error", ERROR, false},
		{"loud", WARN, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Warn("nothing happens")
	assert.Equal(t, io.Discard, l.output)
	assert.Greater(t, int(l.level), int(ERROR))
}
