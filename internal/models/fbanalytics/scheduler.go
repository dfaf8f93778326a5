package fbanalytics

import (
	"context"
	"fmt"

	"funnelboard/internal/models/fbconfig"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper is the visitor maintenance run by the scheduler.
type Sweeper interface {
	MarkInactiveOffline(ctx context.Context) (int64, error)
	CleanupOldVisitors(ctx context.Context, days int) (int64, error)
}

// StartMaintenance schedules the offline sweep and the retention cleanup
// and starts the scheduler. The caller stops it on shutdown.
func StartMaintenance(cfg fbconfig.MaintenanceConfig, sweeper Sweeper) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(cfg.OfflineSpec, func() { runOfflineSweep(sweeper) }); err != nil {
		return nil, fmt.Errorf("maintenance.offlinespec %q: %w", cfg.OfflineSpec, err)
	}
	if _, err := c.AddFunc(cfg.CleanupSpec, func() { runCleanup(sweeper, cfg.RetentionDays) }); err != nil {
		return nil, fmt.Errorf("maintenance.cleanupspec %q: %w", cfg.CleanupSpec, err)
	}

	c.Start()
	return c, nil
}

func runOfflineSweep(sweeper Sweeper) {
	n, err := sweeper.MarkInactiveOffline(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("offline sweep failed")
		return
	}
	if n > 0 {
		log.Debug().Int64("visitors", n).Msg("visitors marked offline")
	}
}

func runCleanup(sweeper Sweeper, days int) {
	n, err := sweeper.CleanupOldVisitors(context.Background(), days)
	if err != nil {
		log.Error().Err(err).Msg("visitor cleanup failed")
		return
	}
	log.Info().Int64("visitors", n).Int("retention_days", days).Msg("visitor cleanup completed")
}
