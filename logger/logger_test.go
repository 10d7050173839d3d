package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"massa-api/logger"
)

func TestInitLoggerWritesJSONToFile(t *testing.T) {
	defer func() { logger.Logger = zap.NewNop() }()

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, logger.InitLogger(path, "info"))

	logger.Logger.Info("snapshot built", zap.Uint64("version", 7))
	logger.Logger.Debug("dropped below level")
	logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"snapshot built"`)
	assert.Contains(t, string(data), `"version":7`)
	assert.Contains(t, string(data), `"time":`)
	assert.NotContains(t, string(data), "dropped below level")
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, logger.InitLogger("", "loud"))
}
