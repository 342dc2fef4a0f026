package integration

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pagefaves "github.com/pagefaves/pagefaves"
	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/httpserver/handlers"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/records"
	"github.com/pagefaves/pagefaves/internal/store"
)

// newService spins up the real handlers over an in-memory record store.
func newService(t *testing.T) (*httptest.Server, records.Store) {
	t.Helper()
	norm, err := domain.NewNormalizer("")
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	recs := records.NewMemoryStore()

	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	d := deps.Deps{
		Logger:        logger.Nop(),
		StartTime:     time.Now(),
		Records:       recs,
		Normalizer:    norm,
		PublicBaseURL: srv.URL,
	}
	r.Post("/api/bookmarks", handlers.Bookmarks(d))
	r.Post("/api/events", handlers.Events(d))
	r.Get("/api/share/{token}", handlers.Share(d))

	t.Cleanup(srv.Close)
	return srv, recs
}

// sharedStoreConfig makes widgets behave like two processes of the same
// installation: same backends, same broadcast bus, hence same code.
func sharedStoreConfig(namespace string) *store.Config {
	return &store.Config{
		Mode:      store.ModeLocal,
		Namespace: namespace,
		Primary:   store.NewMemoryBackend(),
		Mirror:    store.NewMemoryBackend(),
		Broadcast: store.NewMemoryBus(),
		Logger:    logger.Nop(),
	}
}

func newClientWidget(t *testing.T, baseURL string, cfg *store.Config) *pagefaves.Widget {
	t.Helper()
	w, err := pagefaves.New(pagefaves.Options{
		Origin:  "https://news.example.com",
		BaseURL: baseURL,
		Store:   cfg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestEndToEndSyncAndShareLink(t *testing.T) {
	srv, recs := newService(t)
	ctx := context.Background()

	cfg := sharedStoreConfig("pf_e2e_sync")
	w := newClientWidget(t, srv.URL, cfg)
	w.Add(ctx, "/articles/1", "One", "", "")
	w.Add(ctx, "/articles/2", "Two", "", "")

	if !w.SyncFromServer(ctx, false) {
		t.Fatal("sync failed")
	}
	if w.Status() != pagefaves.SyncInSync {
		t.Fatalf("status = %v", w.Status())
	}
	link := w.ShareLink(ctx)
	if !strings.HasPrefix(link, srv.URL+"/api/share/") {
		t.Fatalf("shareLink = %q", link)
	}

	// The record exists server-side with both bookmarks and a token.
	all, _ := recs.All(ctx)
	if len(all) != 1 {
		t.Fatalf("records = %d, want 1", len(all))
	}
	rec := all[0]
	if len(rec.Bookmarks) != 2 || rec.ShareToken == "" {
		t.Fatalf("record = %+v", rec)
	}
	if code, err := recs.CodeForShareToken(ctx, rec.ShareToken); err != nil || code != rec.Code {
		t.Fatalf("token resolution: %q, %v", code, err)
	}

	w.Close()
}

func TestEndToEndSecondProcessSeesSync(t *testing.T) {
	srv, _ := newService(t)
	ctx := context.Background()

	cfg := sharedStoreConfig("pf_e2e_two")
	a := newClientWidget(t, srv.URL, cfg)
	b := newClientWidget(t, srv.URL, cfg)
	defer b.Close()

	a.Add(ctx, "/a", "A", "", "")
	if !a.SyncFromServer(ctx, false) {
		t.Fatal("sync failed")
	}
	a.Close()

	// b shares the store, so the list and the adopted code both
	// propagated without b ever talking to the network.
	if !b.IsBookmarked("/a") {
		t.Fatalf("b missed the propagated bookmark: %+v", b.List())
	}
}

func TestEndToEndDriftDetection(t *testing.T) {
	srv, recs := newService(t)
	ctx := context.Background()

	cfg := sharedStoreConfig("pf_e2e_drift")
	w := newClientWidget(t, srv.URL, cfg)
	w.Add(ctx, "/a", "A", "", "")
	if !w.SyncFromServer(ctx, false) {
		t.Fatal("sync failed")
	}
	w.Close()

	// Another installation pushes to the same record behind w's back.
	all, _ := recs.All(ctx)
	rec := all[0]
	rec.Bookmarks = append(rec.Bookmarks,
		domain.Bookmark{URL: "/remote", Title: "Remote", TS: 9},
		domain.Bookmark{URL: "/remote2", Title: "Remote 2", TS: 10},
	)
	recs.Save(ctx, rec)

	// A new process of the same installation mutates locally; the event
	// ping sees the count drift and re-syncs the remote entry down.
	w2 := newClientWidget(t, srv.URL, cfg)
	w2.Add(ctx, "/b", "B", "", "")
	w2.Close() // waits for the ping and its follow-up sync

	if !w2.IsBookmarked("/remote") {
		t.Fatalf("drift re-sync did not pull remote entry: %+v", w2.List())
	}
}
