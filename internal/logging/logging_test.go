package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("warn", false)
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel), "info should be disabled at warn level")
	require.True(t, logger.Core().Enabled(zapcore.ErrorLevel), "error should be enabled at warn level")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", true)
	require.Error(t, err)
}
