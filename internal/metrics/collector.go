package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current values for gauge metrics.
// A nil function leaves its gauge untouched; a negative count means the
// source is unavailable.
type StatsSource struct {
	ActiveTempBans   func(ctx context.Context) int
	GatewayConnected func() bool
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	collect(ctx, src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(ctx, src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(ctx context.Context, src StatsSource) {
	if src.ActiveTempBans != nil {
		if n := src.ActiveTempBans(ctx); n >= 0 {
			TempBansActive.Set(float64(n))
		}
	}
	if src.GatewayConnected != nil {
		if src.GatewayConnected() {
			GatewayConnectionState.Set(1)
		} else {
			GatewayConnectionState.Set(0)
		}
	}
}
