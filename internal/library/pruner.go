package library

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/sonomancer/pkg/icron"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

var logger = log.Component("pruner")

// Pruner deletes books older than the retention window on a cron schedule.
// onDelete is called for every removed book so dependent caches can be released.
type Pruner struct {
	store     Store
	retention time.Duration
	onDelete  func(bookID string)
	cron      *cron.Cron
	now       func() time.Time

	group singleflight.Group
}

func NewPruner(store Store, retention time.Duration, cron *cron.Cron, onDelete func(bookID string)) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		onDelete:  onDelete,
		cron:      cron,
		now:       time.Now,
	}
}

// Schedule registers the prune run with cron. Overlapping triggers share one run.
func (p *Pruner) Schedule(ctx context.Context, expr string) error {
	info, err := icron.GetTriggerInfo(expr, p.now())
	if err != nil {
		return err
	}
	_, err = p.cron.AddFunc(expr, func() {
		if _, err := p.Prune(ctx); err != nil {
			logger.Error("Failed to prune library: %v", err)
		}
	})
	if err != nil {
		return err
	}
	logger.Info("Library retention %s scheduled with %q, next run at %s", p.retention, expr, info.Next.Format(time.RFC3339))
	return nil
}

// Prune removes expired books and reports how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	v, err, _ := p.group.Do("prune", func() (any, error) {
		cutoff := p.now().Add(-p.retention)
		ids, err := p.store.PruneBefore(ctx, cutoff)
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			if p.onDelete != nil {
				p.onDelete(id)
			}
		}
		if len(ids) > 0 {
			logger.Info("Pruned %d books created before %s", len(ids), cutoff.Format(time.RFC3339))
		}
		return len(ids), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
