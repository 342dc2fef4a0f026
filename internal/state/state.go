// Package state owns the canonical in-memory bookmark list, the session
// code and the share link, and keeps them persisted through the store.
//
// Every mutation is validated, persisted and announced before the call
// returns. Change notifications from other instances are reconciled with
// a value-equality check so that the echoes of this instance's own
// writes never cause redundant re-renders.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/store"
)

const (
	codeSuffix      = "_code"
	shareLinkSuffix = "_share_link"
)

// ClearOptions selects what Clear keeps.
type ClearOptions struct {
	KeepCode      bool
	KeepShareLink bool
	KeepBookmarks bool
}

// MergePayload is the input of MergeFromServer: a server response or a
// share import. Unknown/invalid entries are skipped silently.
type MergePayload struct {
	Code      string
	Bookmarks []domain.Bookmark
}

// snapshot is what persist writes. Store writes happen outside the
// state mutex because store notifications are delivered synchronously
// and call back into onStoreChange.
type snapshot struct {
	bookmarks []domain.Bookmark
	code      string
	shareLink string
}

// State is the bookmark state manager.
type State struct {
	st   *store.Store
	norm *domain.Normalizer
	log  logger.Logger

	keyBookmarks string
	keyCode      string
	keyShareLink string

	mu        sync.Mutex
	bookmarks []domain.Bookmark
	code      string
	shareLink string

	listeners map[int]func()
	nextID    int

	unsubscribe func()
}

// New loads existing data from the store and subscribes to cross-instance
// change notifications. storageKey is the bookmark-list key; the code and
// share link live under derived keys.
func New(st *store.Store, storageKey string, norm *domain.Normalizer, log logger.Logger) *State {
	if log == nil {
		log = logger.Nop()
	}
	s := &State{
		st:           st,
		norm:         norm,
		log:          log,
		keyBookmarks: storageKey,
		keyCode:      storageKey + codeSuffix,
		keyShareLink: storageKey + shareLinkSuffix,
		listeners:    make(map[int]func()),
	}

	ctx := context.Background()
	var list []domain.Bookmark
	if st.GetJSON(ctx, s.keyBookmarks, &list) {
		s.bookmarks = list
	}
	s.code, _ = st.Get(ctx, s.keyCode)
	s.shareLink, _ = st.Get(ctx, s.keyShareLink)

	s.unsubscribe = st.OnChange(s.onStoreChange)
	return s
}

// onStoreChange re-reads keys this manager owns and emits only when the
// decoded value actually differs from the in-memory snapshot. Echoes of
// this instance's own writes land here too and compare equal.
func (s *State) onStoreChange(key string) {
	if key != s.keyBookmarks && key != s.keyCode {
		return
	}
	ctx := context.Background()

	s.mu.Lock()
	changed := false
	switch key {
	case s.keyBookmarks:
		var next []domain.Bookmark
		s.st.GetJSON(ctx, s.keyBookmarks, &next)
		if !equalLists(next, s.bookmarks) {
			s.bookmarks = next
			changed = true
		}
	case s.keyCode:
		next, _ := s.st.Get(ctx, s.keyCode)
		if next != "" && next != s.code {
			s.code = next
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.emit()
	}
}

func equalLists(a, b []domain.Bookmark) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return bytes.Equal(ja, jb)
}

// OnChange registers fn, fired after every successful persist and after
// relevant cross-instance updates. Returns an unsubscribe func.
func (s *State) OnChange(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *State) emit() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// List returns a snapshot copy, never the live slice.
func (s *State) List() []domain.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Bookmark, len(s.bookmarks))
	copy(out, s.bookmarks)
	return out
}

// Count returns the number of bookmarks.
func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookmarks)
}

// Has reports whether url (in any normalizable form) is bookmarked.
// Unparseable input is simply not present.
func (s *State) Has(url string) bool {
	rel := s.norm.RelativeURL(url)
	if rel == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(rel) >= 0
}

func (s *State) indexOf(rel string) int {
	for i, b := range s.bookmarks {
		if b.URL == rel {
			return i
		}
	}
	return -1
}

// Add validates, appends and persists a new bookmark. It returns false
// without mutating when the URL fails normalization, the title sanitizes
// to empty, or the URL is already present.
func (s *State) Add(ctx context.Context, url, title, imageLink, description string) bool {
	clean, ok := s.norm.CleanBookmark(domain.Bookmark{
		URL:         url,
		Title:       title,
		ImageLink:   imageLink,
		Description: description,
	}, time.Now())
	if !ok {
		return false
	}

	s.mu.Lock()
	if s.indexOf(clean.URL) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.bookmarks = append(s.bookmarks, clean)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit()
	return true
}

// Remove deletes the entry matching url. When no URL matches and index
// is within range, it removes by position instead (stale UI references
// point at positions, not URLs). Pass a negative index to disable the
// fallback. Persists only when something was removed.
func (s *State) Remove(ctx context.Context, url string, index int) bool {
	rel := s.norm.RelativeURL(url)

	s.mu.Lock()
	at := -1
	if rel != "" {
		at = s.indexOf(rel)
	}
	if at < 0 && index >= 0 && index < len(s.bookmarks) {
		at = index
	}
	if at < 0 {
		s.mu.Unlock()
		return false
	}
	s.bookmarks = append(s.bookmarks[:at], s.bookmarks[at+1:]...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit()
	return true
}

// Reorder moves the entry at from to position to and reports whether a
// move happened. Out-of-range or equal indices are a silent no-op.
func (s *State) Reorder(ctx context.Context, from, to int) bool {
	s.mu.Lock()
	n := len(s.bookmarks)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		s.mu.Unlock()
		return false
	}
	moved := s.bookmarks[from]
	rest := append(s.bookmarks[:from], s.bookmarks[from+1:]...)
	s.bookmarks = append(rest[:to], append([]domain.Bookmark{moved}, rest[to:]...)...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit()
	return true
}

// Clear selectively resets bookmarks, code and share link. It always
// persists and always reports true.
func (s *State) Clear(ctx context.Context, opts ClearOptions) bool {
	s.mu.Lock()
	dropCode := !opts.KeepCode
	dropLink := !opts.KeepShareLink
	if !opts.KeepBookmarks {
		s.bookmarks = nil
	}
	if dropCode {
		s.code = ""
	}
	if dropLink {
		s.shareLink = ""
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if dropCode {
		s.st.Remove(ctx, s.keyCode)
	}
	if dropLink {
		s.st.Remove(ctx, s.keyShareLink)
	}
	s.persist(ctx, snap)
	s.emit()
	return true
}

// MergeFromServer overlays (or, with fullReplace, rebuilds from) the
// incoming list. Merging is URL-keyed and incoming entries win on
// collision; entries that fail validation are skipped silently. The
// payload code is adopted when non-empty. Persists once at the end.
func (s *State) MergeFromServer(ctx context.Context, payload MergePayload, fullReplace bool) {
	now := time.Now()

	s.mu.Lock()
	if code := strings.TrimSpace(payload.Code); code != "" {
		s.code = code
	}

	var merged []domain.Bookmark
	index := make(map[string]int)
	if !fullReplace {
		merged = make([]domain.Bookmark, len(s.bookmarks))
		copy(merged, s.bookmarks)
		for i, b := range merged {
			index[b.URL] = i
		}
	}
	for _, in := range payload.Bookmarks {
		clean, ok := s.norm.CleanBookmark(in, now)
		if !ok {
			continue
		}
		if i, exists := index[clean.URL]; exists {
			merged[i] = clean
			continue
		}
		index[clean.URL] = len(merged)
		merged = append(merged, clean)
	}

	s.bookmarks = merged
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit()
}

// MergeFromShareIfAvailable consumes the store's one-shot share slot: a
// present payload triggers a full-replace merge and the slot is cleared.
// It reports whether a merge happened; meant to run once per startup,
// before any normal sync.
func (s *State) MergeFromShareIfAvailable(ctx context.Context) bool {
	var shared domain.SharePayload
	if !s.st.TemporarySharedData(ctx, &shared) {
		return false
	}
	s.MergeFromServer(ctx, MergePayload{Code: shared.Code, Bookmarks: shared.Bookmarks}, true)
	s.st.RemoveTemporarySharedData(ctx)
	return true
}

// Code returns the session code, falling back to a fresh store read and
// finally generating (and persisting) a new one. Once set, a code is
// never regenerated except through Clear.
func (s *State) Code(ctx context.Context) string {
	s.mu.Lock()
	if s.code != "" {
		code := s.code
		s.mu.Unlock()
		return code
	}
	if v, ok := s.st.Get(ctx, s.keyCode); ok && v != "" {
		s.code = v
		code := s.code
		s.mu.Unlock()
		return code
	}
	s.code = domain.NewCode()
	code := s.code
	s.mu.Unlock()

	s.st.Set(ctx, s.keyCode, code)
	return code
}

// ShareLink returns the share link, re-reading the store when the
// in-memory value is empty. Empty means "no share link available".
func (s *State) ShareLink(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shareLink != "" {
		return s.shareLink
	}
	s.shareLink, _ = s.st.Get(ctx, s.keyShareLink)
	return s.shareLink
}

// SetCodeAndShareLink stores both values. A blank code is ignored unless
// no code exists yet, in which case a fresh one is generated: the code
// is never left unset by this call.
func (s *State) SetCodeAndShareLink(ctx context.Context, code, shareLink string) {
	s.mu.Lock()
	if c := strings.TrimSpace(code); c != "" {
		s.code = c
	} else if s.code == "" {
		s.code = domain.NewCode()
	}
	newCode := s.code
	newLink := strings.TrimSpace(shareLink)
	if newLink != "" {
		s.shareLink = newLink
	}
	s.mu.Unlock()

	s.st.Set(ctx, s.keyCode, newCode)
	if newLink != "" {
		s.st.Set(ctx, s.keyShareLink, newLink)
	}
}

func (s *State) snapshotLocked() snapshot {
	list := make([]domain.Bookmark, len(s.bookmarks))
	copy(list, s.bookmarks)
	return snapshot{bookmarks: list, code: s.code, shareLink: s.shareLink}
}

// persist writes the snapshot through the store. Runs without the state
// mutex held: store notifications re-enter onStoreChange synchronously.
func (s *State) persist(ctx context.Context, snap snapshot) {
	if snap.bookmarks == nil {
		snap.bookmarks = []domain.Bookmark{}
	}
	s.st.SetJSON(ctx, s.keyBookmarks, snap.bookmarks)
	if snap.code != "" {
		s.st.Set(ctx, s.keyCode, snap.code)
	}
	if snap.shareLink != "" {
		s.st.Set(ctx, s.keyShareLink, snap.shareLink)
	}
}

// Close detaches from store notifications.
func (s *State) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
