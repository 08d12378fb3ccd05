package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	log, err := New("debug")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New("warn")
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud")
	require.Error(t, err)
}

func TestGormLevel(t *testing.T) {
	require.Equal(t, gormlogger.Info, GormLevel("debug"))
	require.Equal(t, gormlogger.Warn, GormLevel("info"))
	require.Equal(t, gormlogger.Error, GormLevel("error"))
	require.Equal(t, gormlogger.Silent, GormLevel("off"))
}
