package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("creates logger with default config", func(t *testing.T) {
		log, err := New(DefaultConfig())
		require.NoError(t, err)
		assert.NotNil(t, log)
	})

	t.Run("creates logger with production config", func(t *testing.T) {
		log, err := New(ProductionConfig())
		require.NoError(t, err)
		assert.NotNil(t, log)
	})

	t.Run("environment selects the config", func(t *testing.T) {
		for _, env := range []string{"development", "production", ""} {
			log, err := NewForEnvironment(env)
			require.NoError(t, err)
			assert.NotNil(t, log)
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestContext(t *testing.T) {
	t.Run("round-trips the logger through context", func(t *testing.T) {
		log := zap.NewNop()
		ctx := WithContext(context.Background(), log)

		assert.Same(t, log, FromContext(ctx))
	})

	t.Run("missing logger falls back to no-op", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("WithSKU enriches both context and logger", func(t *testing.T) {
		ctx, enriched := WithSKU(context.Background(), zap.NewNop(), "SKU-001")

		assert.Equal(t, "SKU-001", GetSKU(ctx))
		assert.NotNil(t, enriched)
		assert.Same(t, enriched, FromContext(ctx))
	})

	t.Run("missing SKU is empty", func(t *testing.T) {
		assert.Equal(t, "", GetSKU(context.Background()))
	})

	t.Run("no span leaves the logger unchanged", func(t *testing.T) {
		log := zap.NewNop()
		assert.Same(t, log, WithTraceContext(context.Background(), log))
	})
}
