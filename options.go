package pagefaves

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/store"
	"github.com/pagefaves/pagefaves/internal/syncnet"
)

// Storage mode for the widget's persistent store.
const (
	StorageLocal   = store.ModeLocal
	StorageSession = store.ModeSession
)

// DefaultStorageKey is where the bookmark list lives when Options
// leaves StorageKey empty.
const DefaultStorageKey = "pf_bookmarks"

// PageMeta describes the page the host application is currently
// showing. AddCurrent and friends consume it.
type PageMeta struct {
	URL         string
	Title       string
	ImageLink   string
	Description string
}

// Options configures a Widget. Only Origin is required for local use;
// add BaseURL to enable remote sync.
type Options struct {
	// Origin is the site the widget is embedded in, e.g.
	// "https://news.example.com". Bookmark URLs are stored relative
	// to it.
	Origin string

	// Storage selects StorageLocal (default, durable and shared) or
	// StorageSession (per-process, discarded on exit).
	Storage string

	// StorageKey overrides DefaultStorageKey.
	StorageKey string

	// Redis is the shared high-capacity backend. Nil degrades the
	// store to its file mirror. The caller keeps ownership.
	Redis   *redis.Client
	RedisDB int

	// MirrorPath is the sqlite mirror file. Empty picks a default
	// under the OS temp directory.
	MirrorPath string

	// Store overrides the whole storage configuration; the fields
	// above are ignored when set. Intended for tests and embedders
	// with exotic backends.
	Store *store.Config

	// BaseURL of the remote bookmark service. Empty disables sync.
	BaseURL    string
	Endpoints  syncnet.Endpoints
	Timeout    time.Duration
	Headers    map[string]string
	HTTPClient *http.Client

	// CurrentPage supplies the page for AddCurrent, RemoveCurrent,
	// ToggleCurrent and IsCurrentBookmarked. Optional.
	CurrentPage func() PageMeta

	// SyncOnLoad runs a server sync during Start. By default the
	// server's list is merged into the local one.
	SyncOnLoad bool

	// FullReplaceOnLoad makes the Start sync replace the local list
	// with the server's instead of merging, for embedders whose server
	// copy is authoritative (e.g. an account-backed list). Only
	// meaningful together with SyncOnLoad.
	FullReplaceOnLoad bool

	// Logger defaults to a silent logger: an embedded widget must
	// not write to the host application's output uninvited.
	Logger logger.Logger
}
