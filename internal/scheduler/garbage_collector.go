package scheduler

import (
	"context"
	"time"

	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/metrics"
	"github.com/pagefaves/pagefaves/internal/records"
)

const (
	// DefaultGCThreshold is the idle duration after which records are deleted
	DefaultGCThreshold = 365 * 24 * time.Hour
)

// GarbageCollector deletes records whose installation has not been seen
// for longer than the threshold. Codes are never reused, so a deleted
// record simply reappears empty if the installation comes back.
type GarbageCollector struct {
	records   records.Store
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	stopCh    chan struct{}
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(
	store records.Store,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *GarbageCollector {
	if threshold == 0 {
		threshold = DefaultGCThreshold
	}

	return &GarbageCollector{
		records:   store,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	// Run immediately on start
	if err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	close(gc.stopCh)
}

// Collect removes records idle past the threshold and refreshes the
// stored-bookmarks gauge while it has the full set in hand.
func (gc *GarbageCollector) Collect(ctx context.Context) error {
	now := time.Now()

	recs, err := gc.records.All(ctx)
	if err != nil {
		return err
	}

	reaped := 0
	totalBookmarks := 0
	for _, rec := range recs {
		lastSeen := rec.LastSeenAt
		if lastSeen.IsZero() {
			lastSeen = rec.UpdatedAt
		}
		if now.Sub(lastSeen) > gc.threshold {
			if err := gc.records.Delete(ctx, rec.Code); err != nil {
				gc.logger.Error("failed to delete idle record",
					logger.String("code", rec.Code),
					logger.Error(err))
				continue
			}
			metrics.RecordsReapedTotal.Inc()
			reaped++
			continue
		}
		totalBookmarks += len(rec.Bookmarks)
	}

	metrics.BookmarksStored.Set(float64(totalBookmarks))

	if reaped > 0 {
		gc.logger.Info("garbage collection complete",
			logger.Int("records", len(recs)),
			logger.Int("reaped", reaped),
		)
	}
	return nil
}
