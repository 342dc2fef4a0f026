// Package importfile loads seed bookmark lists from a YAML file.
// Operators use it to pre-provision records (demo installations, fleet
// defaults) without touching Redis by hand.
package importfile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagefaves/pagefaves/internal/domain"
)

// Loader handles loading and parsing of the seed import file.
type Loader struct {
	filePath string
}

// NewLoader creates a new import file loader
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the import file.
func (l *Loader) Load() (Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read import file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse import yaml: %w", err)
	}
	return cfg, nil
}

// Map validates the parsed entries into domain bookmarks, keyed by
// code. Entries that fail validation are dropped; a list whose code is
// blank is skipped entirely.
func Map(cfg Config, norm *domain.Normalizer, now time.Time) map[string][]domain.Bookmark {
	out := make(map[string][]domain.Bookmark, len(cfg.Lists))
	for _, list := range cfg.Lists {
		code := strings.TrimSpace(list.Code)
		if code == "" {
			continue
		}
		var bms []domain.Bookmark
		for _, e := range list.Bookmarks {
			clean, ok := norm.CleanBookmark(domain.Bookmark{
				URL:         e.URL,
				Title:       e.Title,
				ImageLink:   e.ImageLink,
				Description: e.Description,
				TS:          e.TS,
			}, now)
			if !ok {
				continue
			}
			bms = append(bms, clean)
		}
		out[code] = bms
	}
	return out
}
