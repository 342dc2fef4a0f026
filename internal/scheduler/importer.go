// Package scheduler runs the service's background loops: the seed
// importer and the idle-record reaper.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/metrics"
	"github.com/pagefaves/pagefaves/internal/records"
	"github.com/pagefaves/pagefaves/internal/sources/importfile"
)

// Importer periodically re-reads the seed import file and creates any
// records it names that do not exist yet. Existing records are never
// overwritten: the import file provisions, users own their lists.
type Importer struct {
	loader        *importfile.Loader
	norm          *domain.Normalizer
	records       records.Store
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewImporter creates a new seed importer
func NewImporter(
	importFile string,
	store records.Store,
	norm *domain.Normalizer,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Importer {
	return &Importer{
		loader:        importfile.NewLoader(importFile),
		norm:          norm,
		records:       store,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic import process
func (im *Importer) Start(ctx context.Context) error {
	// Import immediately on start
	if err := im.Import(ctx); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}

	ticker := time.NewTicker(im.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := im.Import(ctx); err != nil {
					im.logger.Error("failed to import seed lists",
						logger.Error(err))
				}
			case <-im.manualTrigger:
				im.logger.Info("manual import triggered")
				if err := im.Import(ctx); err != nil {
					im.logger.Error("failed to import seed lists",
						logger.Error(err))
				}
			case <-im.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the importer
func (im *Importer) Stop() {
	close(im.stopCh)
}

// Import loads the seed file and creates missing records.
func (im *Importer) Import(ctx context.Context) error {
	cfg, err := im.loader.Load()
	if err != nil {
		return err
	}

	now := time.Now()
	created := 0
	for code, bms := range importfile.Map(cfg, im.norm, now) {
		_, err := im.records.Get(ctx, code)
		if err == nil {
			continue
		}
		if !errors.Is(err, records.ErrNotFound) {
			return fmt.Errorf("failed to check record %s: %w", code, err)
		}

		rec := &records.Record{
			Code:       code,
			ShareToken: uuid.NewString(),
			Bookmarks:  bms,
			CreatedAt:  now,
			UpdatedAt:  now,
			LastSeenAt: now,
		}
		if err := im.records.Save(ctx, rec); err != nil {
			return fmt.Errorf("failed to seed record %s: %w", code, err)
		}
		metrics.RecordsImportedTotal.Inc()
		created++
	}

	im.logger.Info("seed import complete",
		logger.Int("lists", len(cfg.Lists)),
		logger.Int("created", created),
	)
	return nil
}
