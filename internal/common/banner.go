package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved setup
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("FinSight", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("screener", config.Screener.BaseURL).
		Str("provider", config.Narrative.Provider).
		Msg("FinSight starting")
}
