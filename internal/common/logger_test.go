package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_ReturnsConfiguredLogger(t *testing.T) {
	config := NewDefaultConfig()
	config.Logging.Level = "warn"
	config.Logging.TimeFormat = ""

	logger := InitLogger(config)
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info().Str("case", "console").Msg("below level") })

	config.Logging.Output = nil
	quiet := InitLogger(config)
	require.NotNil(t, quiet)
	assert.NotPanics(t, func() { quiet.Warn().Msg("no writers") })
}
