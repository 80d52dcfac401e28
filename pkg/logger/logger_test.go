package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WARN, &buf, false)

	l.Log(INFO, "dropped", nil)
	l.Log(WARN, "kept", map[string]interface{}{"file": "a.backup"})

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "WARN: kept")
	assert.Contains(t, out, "a.backup")
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(DEBUG, &buf, true)

	l.LogError(ERROR, "pg_dump failed", errors.New("exit 1"), map[string]interface{}{"code": 1})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "pg_dump failed", entry.Message)
	assert.Equal(t, "exit 1", entry.Error)
	assert.EqualValues(t, 1, entry.Fields["code"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestFieldLogger_With(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(NewLogger(DEBUG, &buf, true))
	defer SetDefault(prev)

	base := WithFields(map[string]interface{}{"component": "scheduler"})
	child := base.With(map[string]interface{}{"job": "auto-backup"})
	child.Info("armed")

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "scheduler", entry.Fields["component"])
	assert.Equal(t, "auto-backup", entry.Fields["job"])
	assert.NotContains(t, base.fields, "job")
}
