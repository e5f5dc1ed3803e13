package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetDebugAfterInit(t *testing.T) {
	t.Cleanup(func() {
		Set(zap.NewNop())
		SetDebug(false)
	})

	require.NoError(t, Init(false))
	assert.False(t, level.Enabled(zapcore.DebugLevel))

	SetDebug(true)
	assert.True(t, level.Enabled(zapcore.DebugLevel))

	SetDebug(false)
	assert.False(t, level.Enabled(zapcore.DebugLevel))
	assert.True(t, level.Enabled(zapcore.InfoLevel))
}
