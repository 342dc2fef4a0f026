package pagefaves

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/store"
)

func memStoreConfig() *store.Config {
	return &store.Config{
		Mode:      store.ModeLocal,
		Namespace: "pf_widget_test",
		Primary:   store.NewMemoryBackend(),
		Mirror:    store.NewMemoryBackend(),
		Broadcast: store.NewMemoryBus(),
		Logger:    logger.Nop(),
	}
}

func newWidget(t *testing.T, opts Options) *Widget {
	t.Helper()
	if opts.Origin == "" {
		opts.Origin = "https://news.example.com"
	}
	if opts.Store == nil {
		opts.Store = memStoreConfig()
	}
	w, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestAddToggleRemove(t *testing.T) {
	w := newWidget(t, Options{})
	ctx := context.Background()

	if !w.Add(ctx, "/articles/1", "First", "/img/1.jpg", "desc") {
		t.Fatal("add failed")
	}
	if !w.IsBookmarked("https://news.example.com/articles/1") {
		t.Fatal("bookmark not found by absolute URL")
	}
	if w.Toggle(ctx, "/articles/1", "First", "", "") {
		t.Fatal("toggle of existing bookmark should remove it")
	}
	if w.Count() != 0 {
		t.Fatalf("count = %d after toggle-off", w.Count())
	}
	if !w.Toggle(ctx, "/articles/1", "First", "", "") {
		t.Fatal("toggle of absent bookmark should add it")
	}
}

func TestCurrentPageHelpers(t *testing.T) {
	page := PageMeta{URL: "/sports/today", Title: "Match report"}
	w := newWidget(t, Options{CurrentPage: func() PageMeta { return page }})
	ctx := context.Background()

	if w.IsCurrentBookmarked() {
		t.Fatal("fresh widget should not have the current page")
	}
	if !w.AddCurrent(ctx) {
		t.Fatal("AddCurrent failed")
	}
	if !w.IsCurrentBookmarked() {
		t.Fatal("current page should be bookmarked")
	}
	if w.ToggleCurrent(ctx) {
		t.Fatal("ToggleCurrent should report not-bookmarked after removal")
	}
}

func TestNoCurrentPageProvider(t *testing.T) {
	w := newWidget(t, Options{})
	if w.AddCurrent(context.Background()) {
		t.Fatal("AddCurrent without provider should fail")
	}
	if w.IsCurrentBookmarked() {
		t.Fatal("IsCurrentBookmarked without provider should be false")
	}
}

// fakeService implements the remote envelope with an in-memory list.
type fakeService struct {
	mu        sync.Mutex
	bookmarks map[string]domain.Bookmark
	order     []string
	shareLink string
	events    []string
}

func newFakeService(shareLink string) *fakeService {
	return &fakeService{bookmarks: make(map[string]domain.Bookmark), shareLink: shareLink}
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code      string            `json:"code"`
			Bookmarks []domain.Bookmark `json:"bookmarks"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		for _, b := range req.Bookmarks {
			if _, ok := f.bookmarks[b.URL]; !ok {
				f.order = append(f.order, b.URL)
			}
			f.bookmarks[b.URL] = b
		}
		merged := make([]domain.Bookmark, 0, len(f.order))
		for _, u := range f.order {
			merged = append(merged, f.bookmarks[u])
		}
		f.mu.Unlock()

		json.NewEncoder(w).Encode(domain.ServerPayload{
			Status:            domain.StatusSuccess,
			Code:              req.Code,
			ShareLink:         f.shareLink,
			Bookmarks:         merged,
			NumberOfBookmarks: len(merged),
		})
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type string `json:"type"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.events = append(f.events, req.Type)
		n := len(f.order)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(domain.ServerPayload{
			Status:            domain.StatusSuccess,
			NumberOfBookmarks: n,
		})
	})
	return mux
}

func TestSyncFromServer(t *testing.T) {
	svc := newFakeService("https://svc.example.com/s/tok1")
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	// Seed the service with a bookmark another installation saved.
	svc.bookmarks["/remote"] = domain.Bookmark{URL: "/remote", Title: "Remote", TS: 1}
	svc.order = []string{"/remote"}

	w := newWidget(t, Options{BaseURL: srv.URL})
	ctx := context.Background()
	w.Add(ctx, "/local", "Local", "", "")

	if !w.SyncFromServer(ctx, false) {
		t.Fatal("sync failed")
	}
	if w.Status() != SyncInSync {
		t.Fatalf("status = %v, want in sync", w.Status())
	}
	if !w.IsBookmarked("/remote") || !w.IsBookmarked("/local") {
		t.Fatalf("merge incomplete: %+v", w.List())
	}
	if w.ShareLink(ctx) != "https://svc.example.com/s/tok1" {
		t.Fatalf("shareLink = %q", w.ShareLink(ctx))
	}
}

// authoritativeService answers every sync with a fixed list, ignoring
// whatever was posted.
func authoritativeService(list []domain.Bookmark) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.ServerPayload{
			Status:            domain.StatusSuccess,
			Code:              "server123456",
			Bookmarks:         list,
			NumberOfBookmarks: len(list),
		})
	})
}

func TestStartFullReplaceOnLoad(t *testing.T) {
	srv := httptest.NewServer(authoritativeService([]domain.Bookmark{
		{URL: "/remote", Title: "Remote", TS: 1},
	}))
	defer srv.Close()
	ctx := context.Background()

	w := newWidget(t, Options{
		BaseURL:           srv.URL,
		SyncOnLoad:        true,
		FullReplaceOnLoad: true,
	})
	w.Add(ctx, "/local", "Local", "", "")
	w.Start(ctx)

	// The server copy is authoritative: the local-only entry is gone.
	if w.IsBookmarked("/local") {
		t.Fatalf("full replace kept local entry: %+v", w.List())
	}
	if !w.IsBookmarked("/remote") || w.Count() != 1 {
		t.Fatalf("list after full replace: %+v", w.List())
	}
}

func TestStartMergeOnLoad(t *testing.T) {
	srv := httptest.NewServer(authoritativeService([]domain.Bookmark{
		{URL: "/remote", Title: "Remote", TS: 1},
	}))
	defer srv.Close()
	ctx := context.Background()

	w := newWidget(t, Options{BaseURL: srv.URL, SyncOnLoad: true})
	w.Add(ctx, "/local", "Local", "", "")
	w.Start(ctx)

	if !w.IsBookmarked("/local") || !w.IsBookmarked("/remote") {
		t.Fatalf("merge-on-load lost an entry: %+v", w.List())
	}
}

func TestSyncFailureLeavesStateUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := newWidget(t, Options{BaseURL: srv.URL})
	ctx := context.Background()
	w.Add(ctx, "/a", "A", "", "")

	if w.SyncFromServer(ctx, false) {
		t.Fatal("sync should have failed")
	}
	if w.Status() != SyncOutOfSync {
		t.Fatalf("status = %v, want out of sync", w.Status())
	}
	if w.Count() != 1 {
		t.Fatalf("local list changed on failed sync: %+v", w.List())
	}
}

func TestEventReportingAndDriftResync(t *testing.T) {
	svc := newFakeService("")
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	// The service already has an entry, so the widget's first event
	// response reports a higher count and must trigger a re-sync.
	svc.bookmarks["/remote"] = domain.Bookmark{URL: "/remote", Title: "Remote", TS: 1}
	svc.order = []string{"/remote"}

	w := newWidget(t, Options{BaseURL: srv.URL})
	ctx := context.Background()
	w.Add(ctx, "/a", "A", "", "")
	w.Close() // waits for the async event report and its re-sync

	if !w.IsBookmarked("/remote") {
		t.Fatalf("drift re-sync did not pull remote entry: %+v", w.List())
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.events) == 0 || svc.events[0] != "added" {
		t.Fatalf("events = %v, want added first", svc.events)
	}
}

func TestReorderReportsOnlyEffectiveMoves(t *testing.T) {
	svc := newFakeService("")
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	w := newWidget(t, Options{BaseURL: srv.URL})
	ctx := context.Background()
	w.Add(ctx, "/a", "A", "", "")
	w.Add(ctx, "/b", "B", "", "")

	w.Reorder(ctx, 5, 0) // out of range, no move
	w.Reorder(ctx, 1, 1) // no-op move
	w.Reorder(ctx, 0, 1)
	w.Close() // waits for the async pings

	svc.mu.Lock()
	defer svc.mu.Unlock()
	reordered := 0
	for _, e := range svc.events {
		if e == "reordered" {
			reordered++
		}
	}
	if reordered != 1 {
		t.Fatalf("reordered pings = %d, events %v", reordered, svc.events)
	}
}

func TestOfflineWidgetNeverCallsOut(t *testing.T) {
	w := newWidget(t, Options{})
	ctx := context.Background()
	if w.SyncFromServer(ctx, false) {
		t.Fatal("sync without a base URL should report false")
	}
	w.Add(ctx, "/a", "A", "", "")
	if w.Status() != SyncUnknown {
		t.Fatalf("status = %v, want unknown", w.Status())
	}
}

func TestShareStaging(t *testing.T) {
	cfg := memStoreConfig()
	w := newWidget(t, Options{Store: cfg})
	ctx := context.Background()
	w.Add(ctx, "/a", "A", "", "")

	if !w.StageShare(ctx) {
		t.Fatal("StageShare failed")
	}

	// A second context of the same installation imports on Start.
	other := newWidget(t, Options{Store: cfg})
	other.Start(ctx)
	if !other.IsBookmarked("/a") {
		t.Fatalf("share import missed: %+v", other.List())
	}
}

func TestEmailLink(t *testing.T) {
	w := newWidget(t, Options{})
	ctx := context.Background()

	if w.EmailLink(ctx, "") != "" {
		t.Fatal("email link without share link should be empty")
	}

	w.state.SetCodeAndShareLink(ctx, "abc", "https://svc.example.com/s/abc")
	link := w.EmailLink(ctx, "Look at these")
	if !strings.HasPrefix(link, "mailto:?subject=") {
		t.Fatalf("link = %q", link)
	}
	if !strings.Contains(link, "Look+at+these") {
		t.Fatalf("subject not encoded: %q", link)
	}
}

func TestClear(t *testing.T) {
	w := newWidget(t, Options{})
	ctx := context.Background()
	w.Add(ctx, "/a", "A", "", "")

	if !w.Clear(ctx) {
		t.Fatal("Clear must report true")
	}
	if w.Count() != 0 {
		t.Fatalf("count = %d after clear", w.Count())
	}
}
