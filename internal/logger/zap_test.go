package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestEffectiveLevel(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want zapcore.Level
	}{
		{"verbose debug", Config{Level: "debug", Verbose: true}, zapcore.DebugLevel},
		{"verbose info", Config{Level: "info", Verbose: true}, zapcore.InfoLevel},
		{"quiet info", Config{Level: "info"}, zapcore.WarnLevel},
		{"quiet debug", Config{Level: "debug"}, zapcore.WarnLevel},
		{"quiet error", Config{Level: "error"}, zapcore.ErrorLevel},
		{"unknown level", Config{Level: "chatty", Verbose: true}, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveLevel(tt.cfg))
		})
	}
}

func TestFieldsToMap(t *testing.T) {
	m := fieldsToMap([]zapcore.Field{
		zap.String("product", "wofs_albers"),
		zap.Int("count", 66),
		zap.Float64("ratio", 0.5),
		zap.Bool("last", true),
		zap.Duration("took", 1500*time.Millisecond),
		zap.Error(errors.New("boom")),
	})

	assert.Equal(t, "wofs_albers", m["product"])
	assert.EqualValues(t, 66, m["count"])
	assert.Equal(t, 0.5, m["ratio"])
	assert.Equal(t, true, m["last"])
	assert.Equal(t, "boom", m["error"])
	assert.Contains(t, m, "took")
}

func TestNew_StdoutLogger(t *testing.T) {
	l, err := New(Config{Level: "debug", Format: "json", Output: "stdout"}, SentryConfig{})
	assert.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
