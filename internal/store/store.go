// Package store provides the durable, namespaced key-value layer the
// bookmark state manager persists through. It hides two physical
// backends (a shared high-capacity one and a small cookie-like local
// mirror), selects between them with a construction-time probe, and
// broadcasts every change to all other instances of the same namespace.
//
// Consistency across instances is last-write-wins: whichever Set lands
// last in the backend wins, and everyone is notified. There is no
// locking and no transaction; correctness above this layer relies on
// idempotent, URL-keyed merging.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pagefaves/pagefaves/internal/logger"
)

const (
	// ModeLocal selects the durable shared backend with cookie mirror.
	ModeLocal = "local"
	// ModeSession selects per-process storage with no mirroring.
	ModeSession = "session"

	// DefaultNamespace prefixes every key and names the broadcast
	// channel when the caller does not pick one.
	DefaultNamespace = "pf_store"

	tempShareSuffix = "_share_bookmark_list"
)

// Config configures a Store. Zero values get sensible defaults; the
// Primary/Mirror/Broadcast fields let tests substitute in-memory fakes
// for every external dependency.
type Config struct {
	Mode      string // ModeLocal (default) or ModeSession
	Namespace string

	Redis      *redis.Client // high-capacity backend; nil degrades to the mirror
	RedisDB    int           // database number, for the keyspace safety net
	MirrorPath string        // sqlite file; defaults under os.TempDir()

	Primary   Backend     // overrides the high-capacity backend
	Mirror    Backend     // overrides the cookie-like backend
	Broadcast Broadcaster // overrides the notification fabric

	Logger logger.Logger
}

// Store is the hybrid key-value store. Every operation swallows backend
// failures and degrades to nil/no-op: a storage outage must never crash
// or block the embedding page.
type Store struct {
	mode      string
	namespace string
	tempKey   string

	primary      Backend
	mirror       Backend // non-nil only when primary is high-capacity
	shareBackend Backend // high-capacity backend, for the one-shot share slot

	bus      Broadcaster
	ownsBus  bool
	busUnsub func()

	mu        sync.Mutex
	listeners map[int]func(key string)
	nextID    int

	owned  []Backend
	logger logger.Logger
}

// New builds a Store. It never fails: if the high-capacity backend's
// probe round-trip does not match, the Store falls back permanently to
// the cookie-like backend (no re-probing); if that is unavailable too,
// it degrades to volatile in-process storage with a warning.
func New(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeLocal
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	s := &Store{
		mode:      mode,
		namespace: ns,
		tempKey:   ns + tempShareSuffix,
		listeners: make(map[int]func(string)),
		logger:    log,
	}

	high := cfg.Primary
	if high == nil && cfg.Redis != nil {
		high = NewRedisBackend(cfg.Redis, ns)
	}

	if mode == ModeSession {
		s.primary = NewMemoryBackend()
		s.owned = append(s.owned, s.primary)
		// The one-shot share slot always lives in the shared backend,
		// even for session-scoped stores.
		s.shareBackend = high
	} else {
		s.setupLocal(cfg, high)
	}

	switch {
	case cfg.Broadcast != nil:
		s.bus = cfg.Broadcast
	case cfg.Redis != nil:
		s.bus = NewRedisBroadcaster(cfg.Redis, ns, cfg.RedisDB, log)
		s.ownsBus = true
	default:
		s.bus = nopBus{}
	}
	s.busUnsub = s.bus.Subscribe(s.emit)

	return s
}

func (s *Store) setupLocal(cfg Config, high Backend) {
	mirror := cfg.Mirror
	if mirror == nil {
		path := cfg.MirrorPath
		if path == "" {
			path = filepath.Join(os.TempDir(), s.namespace+"_mirror.db")
		}
		sqlMirror, err := NewSQLiteBackend(path)
		if err != nil {
			s.logger.Warn("cookie mirror unavailable",
				logger.String("path", path),
				logger.Error(err))
		} else {
			mirror = sqlMirror
			s.owned = append(s.owned, sqlMirror)
		}
	}

	if high != nil && s.probe(high) {
		s.primary = high
		s.mirror = mirror
		s.shareBackend = high
		return
	}

	if high != nil {
		s.logger.Warn("high-capacity backend failed probe, falling back",
			logger.String("namespace", s.namespace))
	}
	if mirror != nil {
		// Cookie-like backend becomes the primary for the rest of this
		// Store's life; nothing to mirror into.
		s.primary = mirror
		return
	}
	s.logger.Warn("no durable backend available, using volatile storage")
	s.primary = NewMemoryBackend()
	s.owned = append(s.owned, s.primary)
}

// probe performs the write-read-delete round-trip on a throwaway key.
func (s *Store) probe(b Backend) bool {
	ctx := context.Background()
	key := "__" + s.namespace + "_" + uuid.NewString()
	if err := b.Set(ctx, key, "1"); err != nil {
		return false
	}
	val, ok, err := b.Get(ctx, key)
	_ = b.Remove(ctx, key)
	return err == nil && ok && val == "1"
}

// Namespace returns the store's key/channel namespace.
func (s *Store) Namespace() string { return s.namespace }

// TempShareKey returns the well-known one-shot share slot key.
func (s *Store) TempShareKey() string { return s.tempKey }

// HighCapacity reports whether the shared backend survived the probe.
func (s *Store) HighCapacity() bool { return s.mirror != nil || s.shareBackend == s.primary }

// Get reads key from the primary backend, falling back to the cookie
// mirror when the primary misses. Absent or failing reads return ok=false.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	val, ok, err := s.primary.Get(ctx, key)
	if err != nil {
		s.logger.Warn("store get failed", logger.String("key", key), logger.Error(err))
		ok = false
	}
	if ok {
		return val, true
	}
	if s.mirror == nil {
		return "", false
	}
	val, ok, err = s.mirror.Get(ctx, key)
	if err != nil {
		s.logger.Warn("mirror get failed", logger.String("key", key), logger.Error(err))
		return "", false
	}
	return val, ok
}

// Set writes key to the primary backend, mirrors it (local mode with a
// healthy high-capacity primary only), broadcasts the key and notifies
// this instance's own listeners.
func (s *Store) Set(ctx context.Context, key, value string) {
	if err := s.primary.Set(ctx, key, value); err != nil {
		s.logger.Warn("store set failed", logger.String("key", key), logger.Error(err))
	}
	s.mirrorSet(ctx, key, value)
	s.bus.Publish(ctx, key)
	s.emit(key)
}

func (s *Store) mirrorSet(ctx context.Context, key, value string) {
	if s.mirror == nil || key == s.tempKey {
		return
	}
	if err := s.mirror.Set(ctx, key, value); err != nil {
		if errors.Is(err, ErrValueTooLarge) {
			s.logger.Debug("value too large for cookie mirror", logger.String("key", key))
			return
		}
		s.logger.Warn("mirror set failed", logger.String("key", key), logger.Error(err))
	}
}

// Remove deletes key from both backends, broadcasts and notifies.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.primary.Remove(ctx, key); err != nil {
		s.logger.Warn("store remove failed", logger.String("key", key), logger.Error(err))
	}
	if s.mirror != nil && key != s.tempKey {
		if err := s.mirror.Remove(ctx, key); err != nil {
			s.logger.Warn("mirror remove failed", logger.String("key", key), logger.Error(err))
		}
	}
	s.bus.Publish(ctx, key)
	s.emit(key)
}

// GetJSON decodes the stored value into dest. Missing keys and decode
// failures both return false, never an error.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logger.Debug("stored value is not valid JSON", logger.String("key", key))
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("store marshal failed", logger.String("key", key), logger.Error(err))
		return
	}
	s.Set(ctx, key, string(raw))
}

// TemporarySharedData reads the one-shot share slot into dest. The slot
// lives only in the high-capacity backend; when that backend is
// unavailable the slot is simply absent.
func (s *Store) TemporarySharedData(ctx context.Context, dest any) bool {
	if s.shareBackend == nil {
		return false
	}
	raw, ok, err := s.shareBackend.Get(ctx, s.tempKey)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), dest) == nil
}

// SetTemporarySharedData stages v in the share slot for one-time
// consumption by the next state-manager initialization.
func (s *Store) SetTemporarySharedData(ctx context.Context, v any) bool {
	if s.shareBackend == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if err := s.shareBackend.Set(ctx, s.tempKey, string(raw)); err != nil {
		s.logger.Warn("share slot write failed", logger.Error(err))
		return false
	}
	s.bus.Publish(ctx, s.tempKey)
	s.emit(s.tempKey)
	return true
}

// RemoveTemporarySharedData clears the share slot. Removing an absent
// slot is a harmless no-op; the call always reports true.
func (s *Store) RemoveTemporarySharedData(ctx context.Context) bool {
	if s.shareBackend != nil {
		if err := s.shareBackend.Remove(ctx, s.tempKey); err != nil {
			s.logger.Warn("share slot remove failed", logger.Error(err))
		}
	}
	s.bus.Publish(ctx, s.tempKey)
	s.emit(s.tempKey)
	return true
}

// OnChange registers a listener invoked with the changed key for local
// writes, peer broadcasts and safety-net storage events alike. The
// returned func unsubscribes.
func (s *Store) OnChange(fn func(key string)) func() {
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

func (s *Store) emit(key string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

// Close detaches from the notification fabric and closes every backend
// this Store created. Injected backends and buses stay open.
func (s *Store) Close() error {
	if s.busUnsub != nil {
		s.busUnsub()
	}
	var firstErr error
	if s.ownsBus {
		if err := s.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, b := range s.owned {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
