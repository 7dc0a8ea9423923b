package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/bootstrap"
	"github.com/fpang/claw-cam/internal/config"
)

// OpenBooth wires a booth from cfg or exits fatally.
func OpenBooth(ctx context.Context, cfg config.Config) *bootstrap.Booth {
	b, err := bootstrap.NewBooth(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start the booth")
	}
	if b.Client.Keys().Len() == 0 && cfg.Provider != "agent" {
		log.Warn().Msg("No API keys configured. Set GEMINI_API_KEY or GEMINI_API_KEYS, or run clawcam keys set")
	}
	return b
}
