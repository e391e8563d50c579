package logger_test

import (
	"testing"

	"github.com/paveg/clickprep/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		enabled       zapcore.Level
		disabled      []zapcore.Level
	}{
		{level: "debug", format: "json", enabled: zapcore.DebugLevel},
		{level: "info", format: "console", enabled: zapcore.InfoLevel, disabled: []zapcore.Level{zapcore.DebugLevel}},
		{level: "WARN", format: "", enabled: zapcore.WarnLevel, disabled: []zapcore.Level{zapcore.InfoLevel}},
		{level: "error", format: "JSON", enabled: zapcore.ErrorLevel, disabled: []zapcore.Level{zapcore.WarnLevel}},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			log, err := logger.New(tt.level, tt.format)
			require.NoError(t, err)
			require.NotNil(t, log)

			assert.True(t, log.Core().Enabled(tt.enabled))
			for _, lvl := range tt.disabled {
				assert.False(t, log.Core().Enabled(lvl))
			}
		})
	}
}

func TestNew_UnknownLevel(t *testing.T) {
	_, err := logger.New("verbose", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log level "verbose"`)
}
