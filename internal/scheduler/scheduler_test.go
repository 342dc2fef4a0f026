package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/records"
)

func writeImportFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write import file: %v", err)
	}
	return path
}

func TestImporterCreatesOnlyMissing(t *testing.T) {
	store := records.NewMemoryStore()
	norm, _ := domain.NewNormalizer("")
	ctx := context.Background()

	// A record that already exists and must not be overwritten.
	store.Save(ctx, &records.Record{
		Code:      "existing1234",
		Bookmarks: []domain.Bookmark{{URL: "/mine", Title: "Mine", TS: 1}},
	})

	path := writeImportFile(t, `
lists:
  - code: existing1234
    bookmarks:
      - url: /seed
        title: Seed
  - code: fresh1234567
    bookmarks:
      - url: /seed
        title: Seed
`)

	im := NewImporter(path, store, norm, logger.Nop(), time.Hour, nil)
	if err := im.Import(ctx); err != nil {
		t.Fatalf("Import: %v", err)
	}

	existing, _ := store.Get(ctx, "existing1234")
	if len(existing.Bookmarks) != 1 || existing.Bookmarks[0].URL != "/mine" {
		t.Fatalf("existing record was overwritten: %+v", existing.Bookmarks)
	}

	fresh, err := store.Get(ctx, "fresh1234567")
	if err != nil {
		t.Fatalf("seeded record missing: %v", err)
	}
	if fresh.ShareToken == "" {
		t.Fatal("seeded record has no share token")
	}
	if len(fresh.Bookmarks) != 1 || fresh.Bookmarks[0].URL != "/seed" {
		t.Fatalf("seeded bookmarks = %+v", fresh.Bookmarks)
	}

	// Importing again is a no-op.
	if err := im.Import(ctx); err != nil {
		t.Fatalf("second Import: %v", err)
	}
}

func TestImporterMissingFile(t *testing.T) {
	im := NewImporter(filepath.Join(t.TempDir(), "absent.yaml"),
		records.NewMemoryStore(), mustNormalizer(t), logger.Nop(), time.Hour, nil)
	if err := im.Import(context.Background()); err == nil {
		t.Fatal("expected error for missing import file")
	}
}

func mustNormalizer(t *testing.T) *domain.Normalizer {
	t.Helper()
	norm, err := domain.NewNormalizer("")
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	return norm
}

func TestGarbageCollectorReapsIdleRecords(t *testing.T) {
	store := records.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Save(ctx, &records.Record{
		Code:       "active123456",
		Bookmarks:  []domain.Bookmark{{URL: "/a", Title: "A", TS: 1}},
		LastSeenAt: now,
	})
	store.Save(ctx, &records.Record{
		Code:       "idle12345678",
		LastSeenAt: now.Add(-400 * 24 * time.Hour),
	})
	// No LastSeenAt at all: falls back to UpdatedAt.
	store.Save(ctx, &records.Record{
		Code:      "stale1234567",
		UpdatedAt: now.Add(-400 * 24 * time.Hour),
	})

	gc := NewGarbageCollector(store, logger.Nop(), time.Hour, 0)
	if err := gc.Collect(ctx); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if _, err := store.Get(ctx, "active123456"); err != nil {
		t.Fatalf("active record reaped: %v", err)
	}
	if _, err := store.Get(ctx, "idle12345678"); err == nil {
		t.Fatal("idle record survived")
	}
	if _, err := store.Get(ctx, "stale1234567"); err == nil {
		t.Fatal("stale record survived")
	}
}

func TestGarbageCollectorKeepsRecent(t *testing.T) {
	store := records.NewMemoryStore()
	ctx := context.Background()

	store.Save(ctx, &records.Record{Code: "fresh1234567", LastSeenAt: time.Now()})

	gc := NewGarbageCollector(store, logger.Nop(), time.Hour, 24*time.Hour)
	if err := gc.Collect(ctx); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if _, err := store.Get(ctx, "fresh1234567"); err != nil {
		t.Fatalf("fresh record reaped: %v", err)
	}
}
