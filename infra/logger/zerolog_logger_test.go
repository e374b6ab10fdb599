package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})
	return &buf
}

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	buf := capture(t)
	require.NoError(t, Configure("debug", false))
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
	assert.Contains(t, buf.String(), "info test")
}

func TestLevelFiltersAndComponentField(t *testing.T) {
	t.Setenv("APP_ENV", "")
	buf := capture(t)
	require.NoError(t, Configure("warn", false))
	l := New("optimizer")
	l.Infof("hidden")
	l.Warnf("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "optimizer", entry["component"])
	assert.Equal(t, "shown 2", entry["message"])
	assert.Equal(t, "warn", entry["level"])
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Configure("loud", false))
}

func TestNopLoggerSatisfiesLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Infof("ignored")
}
