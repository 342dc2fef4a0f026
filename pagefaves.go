// Package pagefaves is an embeddable bookmark ("favourites") widget
// engine: a persistent local bookmark list with validation, optional
// remote synchronization and cross-process change propagation.
//
// The zero configuration works fully offline. Supplying a Redis client
// shares the list between processes of the same installation; supplying
// a service base URL keeps it synchronized with the remote bookmark
// service as well.
package pagefaves

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/state"
	"github.com/pagefaves/pagefaves/internal/store"
	"github.com/pagefaves/pagefaves/internal/syncnet"
)

// Bookmark is a single saved page.
type Bookmark = domain.Bookmark

// SyncStatus reports the widget's last known relationship with the
// remote service.
type SyncStatus = domain.SyncStatus

const (
	SyncUnknown   = domain.SyncUnknown
	SyncInSync    = domain.SyncInSync
	SyncOutOfSync = domain.SyncOutOfSync
)

// Widget is the bookmark engine. All methods are safe for concurrent
// use. Create one with New, call Start once, and Close when done.
type Widget struct {
	opts   Options
	log    logger.Logger
	store  *store.Store
	state  *state.State
	client *syncnet.Client

	mu     sync.Mutex
	status SyncStatus

	wg sync.WaitGroup
}

// New wires the widget from opts. It never fails: a bad origin is
// reported through err but storage problems degrade silently, the same
// way the store itself does.
func New(opts Options) (*Widget, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	if opts.StorageKey == "" {
		opts.StorageKey = DefaultStorageKey
	}

	norm, err := domain.NewNormalizer(opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("bad origin %q: %w", opts.Origin, err)
	}

	var st *store.Store
	if opts.Store != nil {
		st = store.New(*opts.Store)
	} else {
		st = store.New(store.Config{
			Mode:       opts.Storage,
			Redis:      opts.Redis,
			RedisDB:    opts.RedisDB,
			MirrorPath: opts.MirrorPath,
			Logger:     log,
		})
	}

	w := &Widget{
		opts:  opts,
		log:   log,
		store: st,
		state: state.New(st, opts.StorageKey, norm, log),
		client: syncnet.New(syncnet.Config{
			BaseURL:    opts.BaseURL,
			Endpoints:  opts.Endpoints,
			Timeout:    opts.Timeout,
			Headers:    opts.Headers,
			HTTPClient: opts.HTTPClient,
			Logger:     log,
		}),
	}
	return w, nil
}

// Start performs the load-time sequence: consume a pending share import
// first, then (when configured) sync with the remote service.
func (w *Widget) Start(ctx context.Context) {
	if w.state.MergeFromShareIfAvailable(ctx) {
		w.log.Info("imported shared bookmark list")
	}
	if w.opts.SyncOnLoad && w.client.Enabled() {
		w.SyncFromServer(ctx, w.opts.FullReplaceOnLoad)
	}
}

// Close waits for in-flight event reports and releases the store.
func (w *Widget) Close() error {
	w.wg.Wait()
	w.state.Close()
	return w.store.Close()
}

// OnChange registers fn, called after every local mutation and every
// reconciled cross-process change. Returns an unsubscribe func.
func (w *Widget) OnChange(fn func()) func() {
	return w.state.OnChange(fn)
}

// List returns a copy of the bookmark list in display order.
func (w *Widget) List() []Bookmark { return w.state.List() }

// Count returns the number of bookmarks.
func (w *Widget) Count() int { return w.state.Count() }

// IsBookmarked reports whether url is in the list, in any form the
// origin normalizer accepts.
func (w *Widget) IsBookmarked(url string) bool { return w.state.Has(url) }

// Add saves a page. It reports false when validation rejects the input
// or the URL is already bookmarked.
func (w *Widget) Add(ctx context.Context, url, title, imageLink, description string) bool {
	if !w.state.Add(ctx, url, title, imageLink, description) {
		return false
	}
	w.reportEvent("added", url)
	return true
}

// Remove deletes the bookmark for url; index is the displayed position,
// used as a fallback when the URL no longer matches (pass -1 to
// disable).
func (w *Widget) Remove(ctx context.Context, url string, index int) bool {
	if !w.state.Remove(ctx, url, index) {
		return false
	}
	w.reportEvent("removed", url)
	return true
}

// Toggle adds url when absent and removes it when present. It reports
// whether the url is bookmarked afterwards.
func (w *Widget) Toggle(ctx context.Context, url, title, imageLink, description string) bool {
	if w.state.Has(url) {
		w.Remove(ctx, url, -1)
		return false
	}
	return w.Add(ctx, url, title, imageLink, description)
}

// Reorder moves the bookmark at position from to position to. Rejected
// moves (out-of-range or equal indices) change nothing and are not
// reported.
func (w *Widget) Reorder(ctx context.Context, from, to int) {
	if w.state.Reorder(ctx, from, to) {
		w.reportEvent("reordered", "")
	}
}

// AddCurrent bookmarks the page reported by Options.CurrentPage.
func (w *Widget) AddCurrent(ctx context.Context) bool {
	p, ok := w.currentPage()
	if !ok {
		return false
	}
	return w.Add(ctx, p.URL, p.Title, p.ImageLink, p.Description)
}

// RemoveCurrent removes the current page's bookmark.
func (w *Widget) RemoveCurrent(ctx context.Context) bool {
	p, ok := w.currentPage()
	if !ok {
		return false
	}
	return w.Remove(ctx, p.URL, -1)
}

// ToggleCurrent toggles the current page and reports whether it is
// bookmarked afterwards.
func (w *Widget) ToggleCurrent(ctx context.Context) bool {
	p, ok := w.currentPage()
	if !ok {
		return false
	}
	return w.Toggle(ctx, p.URL, p.Title, p.ImageLink, p.Description)
}

// IsCurrentBookmarked reports whether the current page is bookmarked.
func (w *Widget) IsCurrentBookmarked() bool {
	p, ok := w.currentPage()
	if !ok {
		return false
	}
	return w.state.Has(p.URL)
}

func (w *Widget) currentPage() (PageMeta, bool) {
	if w.opts.CurrentPage == nil {
		return PageMeta{}, false
	}
	return w.opts.CurrentPage(), true
}

// Clear wipes bookmarks, code and share link, and always reports true.
func (w *Widget) Clear(ctx context.Context) bool {
	return w.state.Clear(ctx, state.ClearOptions{})
}

// Status returns the widget's view of sync freshness.
func (w *Widget) Status() SyncStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Widget) setStatus(s SyncStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

// SyncFromServer uploads the local list and merges the service's view
// back. With fullReplace the service's list wins outright. It reports
// success; failures leave local state untouched and mark the widget
// out of sync.
func (w *Widget) SyncFromServer(ctx context.Context, fullReplace bool) bool {
	if !w.client.Enabled() {
		return false
	}
	res := w.client.PostBookmarks(ctx, w.state.Code(ctx), w.state.List())
	if !res.OK {
		w.log.Debug("sync failed", logger.String("reason", res.Err))
		w.setStatus(SyncOutOfSync)
		return false
	}
	w.state.MergeFromServer(ctx, state.MergePayload{
		Code:      res.Data.Code,
		Bookmarks: res.Data.Bookmarks,
	}, fullReplace)
	w.state.SetCodeAndShareLink(ctx, res.Data.Code, res.Data.ShareLink)
	w.setStatus(SyncInSync)
	return true
}

// reportEvent pings the service off the hot path. A count mismatch in
// the response means another installation changed the list remotely,
// so a full sync follows.
func (w *Widget) reportEvent(typ, pageURL string) {
	if !w.client.Enabled() {
		return
	}
	var payload json.RawMessage
	if pageURL != "" {
		payload, _ = json.Marshal(struct {
			URL string `json:"url"`
		}{URL: pageURL})
	}
	at := time.Now().UnixMilli()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), syncnet.DefaultTimeout)
		defer cancel()

		res := w.client.PostEvent(ctx, w.state.Code(ctx), typ, payload, at)
		if !res.OK {
			w.setStatus(SyncOutOfSync)
			return
		}
		if res.Data.NumberOfBookmarks != w.state.Count() {
			w.log.Debug("remote count drift detected",
				logger.Int("remote", res.Data.NumberOfBookmarks),
				logger.Int("local", w.state.Count()),
			)
			w.setStatus(SyncOutOfSync)
			w.SyncFromServer(ctx, false)
			return
		}
		w.setStatus(SyncInSync)
	}()
}

// ShareLink returns the service-issued share link, or "" before the
// first successful sync.
func (w *Widget) ShareLink(ctx context.Context) string {
	return w.state.ShareLink(ctx)
}

// EmailLink renders a mailto: URL carrying the share link, ready to put
// behind a "send to a friend" control. Empty when no share link exists.
func (w *Widget) EmailLink(ctx context.Context, subject string) string {
	link := w.state.ShareLink(ctx)
	if link == "" {
		return ""
	}
	if subject == "" {
		subject = "My bookmarks"
	}
	body := "Here are my bookmarks: " + link
	return "mailto:?subject=" + url.QueryEscape(subject) + "&body=" + url.QueryEscape(body)
}

// StageShare places the current list in the store's one-shot shared
// slot so that another context of the same installation can import it
// on its next Start.
func (w *Widget) StageShare(ctx context.Context) bool {
	code := strings.TrimSpace(w.state.Code(ctx))
	return w.store.SetTemporarySharedData(ctx, domain.SharePayload{
		Code:      code,
		Bookmarks: w.state.List(),
	})
}
