package importfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagefaves/pagefaves/internal/domain"
)

const sampleYAML = `
lists:
  - code: demo12345678
    bookmarks:
      - url: /articles/1
        title: First article
        imagelink: /img/1.jpg
        ts: 1700000000000
      - url: https://evil.example.com/x
        title: Absolute URL
      - url: /no-title
        title: "   "
  - code: ""
    bookmarks:
      - url: /ignored
        title: Ignored
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestLoadAndMap(t *testing.T) {
	loader := NewLoader(writeSample(t))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Lists) != 2 {
		t.Fatalf("lists = %d, want 2", len(cfg.Lists))
	}

	norm, err := domain.NewNormalizer("")
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	lists := Map(cfg, norm, time.Now())

	if len(lists) != 1 {
		t.Fatalf("mapped lists = %d, want 1 (blank code skipped)", len(lists))
	}
	bms := lists["demo12345678"]
	if len(bms) != 1 {
		t.Fatalf("bookmarks = %+v, want only the valid one", bms)
	}
	if bms[0].URL != "/articles/1" || bms[0].TS != 1700000000000 {
		t.Fatalf("bookmark = %+v", bms[0])
	}
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("lists: [unclosed"), 0o644)
	if _, err := NewLoader(path).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
