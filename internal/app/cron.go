package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	pkgcron "github.com/mx-space/mdx-core/internal/pkg/cron"
)

const (
	visitRetention = 180 * 24 * time.Hour
	cleanupEvery   = 24 * time.Hour
)

// registerCronJobs registers the scheduled background jobs.
func (a *App) registerCronJobs() {
	if a.newsletter != nil {
		a.sched.Register(a.newsletter.Job(a.cfg.Newsletter.Interval))
	}
	if a.visits != nil {
		a.sched.Register(pkgcron.Job{
			Name:        "cleanup_visits",
			Description: "Delete visits older than 180 days",
			Interval:    cleanupEvery,
			Fn: func(ctx context.Context) error {
				n, err := a.visits.Prune(ctx, time.Now().Add(-visitRetention))
				if err != nil {
					return err
				}
				a.logger.Info("old visits removed", zap.Int64("count", n))
				return nil
			},
		})
	}
	a.sched.Register(pkgcron.Job{
		Name:        "refresh_content_cache",
		Description: "Drop cached repository listings and files",
		Interval:    a.cfg.Cache.DirTTL,
		Fn: func(context.Context) error {
			a.store.InvalidateAll()
			return nil
		},
	})
}
