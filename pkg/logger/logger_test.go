package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	l := newLogger()

	formatter, ok := l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
}

func TestGetLogger(t *testing.T) {
	t.Run("falls back to the global entry", func(t *testing.T) {
		entry := G(context.Background())
		assert.Equal(t, L.Logger, entry.Logger)
	})

	t.Run("returns the entry stored in the context", func(t *testing.T) {
		custom := logrus.NewEntry(logrus.New()).WithField("component", "api")
		ctx := WithLogger(context.Background(), custom)

		entry := G(ctx)
		assert.Equal(t, "api", entry.Data["component"])
	})
}

func TestWithFields(t *testing.T) {
	ctx := WithFields(context.Background(), logrus.Fields{"request_id": "abc"})
	ctx = WithFields(ctx, logrus.Fields{"skill": "foo"})

	entry := G(ctx)
	assert.Equal(t, "abc", entry.Data["request_id"])
	assert.Equal(t, "foo", entry.Data["skill"])
}

func TestSetLogLevel(t *testing.T) {
	original := L.Logger.GetLevel()
	defer L.Logger.SetLevel(original)

	tests := []struct {
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{level: "debug", want: logrus.DebugLevel},
		{level: "warn", want: logrus.WarnLevel},
		{level: "ERROR", want: logrus.ErrorLevel},
		{level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, L.Logger.GetLevel())
		})
	}
}

func TestConfigureJSON(t *testing.T) {
	originalLevel := L.Logger.GetLevel()
	originalOut := L.Logger.Out
	defer func() {
		L.Logger.SetLevel(originalLevel)
		L.Logger.SetOutput(originalOut)
		SetLogFormat("fmt")
	}()

	var buf bytes.Buffer
	SetLogOutput(&buf)
	require.NoError(t, Configure("info", "json"))

	L.WithField("kind", "skill").Info("uploaded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "uploaded", line["message"])
	assert.Equal(t, "info", line["logLevel"])
	assert.Equal(t, "skill", line["kind"])
	assert.Contains(t, line, "timestamp")
}
