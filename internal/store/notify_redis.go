package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/pagefaves/pagefaves/internal/logger"
)

// changeMessage is the explicit broadcast posted after every mutation.
// The type tag keeps namespaces apart even if channels are ever shared.
type changeMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// RedisBroadcaster carries change notifications between processes over
// two redundant channels:
//
//   - an explicit pub/sub channel "<namespace>-changed" posted by the
//     writer (the primary, low-latency path; the writer's own subscriber
//     receives the echo too), and
//   - Redis keyspace notifications for the namespace's keys (the safety
//     net, equivalent to the browser's native storage event; silently
//     absent when the server has notify-keyspace-events disabled).
//
// Undecodable or foreign messages are dropped without disturbing other
// listeners.
type RedisBroadcaster struct {
	client    *redis.Client
	namespace string
	channel   string
	logger    logger.Logger

	mu        sync.Mutex
	listeners map[int]func(string)
	nextID    int

	cancel context.CancelFunc
	done   sync.WaitGroup
}

// NewRedisBroadcaster subscribes to both channels and starts delivering.
// db is the Redis database number, needed to build the keyspace pattern.
func NewRedisBroadcaster(client *redis.Client, namespace string, db int, log logger.Logger) *RedisBroadcaster {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBroadcaster{
		client:    client,
		namespace: namespace,
		channel:   namespace + "-changed",
		logger:    log,
		listeners: make(map[int]func(string)),
		cancel:    cancel,
	}

	sub := client.Subscribe(ctx, b.channel)
	b.done.Add(1)
	go b.consumeBroadcast(ctx, sub)

	pattern := fmt.Sprintf("__keyspace@%d__:%s:*", db, namespace)
	psub := client.PSubscribe(ctx, pattern)
	b.done.Add(1)
	go b.consumeKeyspace(ctx, psub)

	return b
}

func (b *RedisBroadcaster) consumeBroadcast(ctx context.Context, sub *redis.PubSub) {
	defer b.done.Done()
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var cm changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
				// One bad message must not take down the listener loop.
				b.logger.Debug("dropping undecodable change message",
					logger.String("payload", msg.Payload))
				continue
			}
			if cm.Type != b.channel || cm.Key == "" {
				continue
			}
			b.emit(cm.Key)
		}
	}
}

func (b *RedisBroadcaster) consumeKeyspace(ctx context.Context, sub *redis.PubSub) {
	defer b.done.Done()
	defer func() { _ = sub.Close() }()

	prefix := b.namespace + ":"
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			// Channel is "__keyspace@<db>__:<namespace>:<key>"; the key
			// follows the first colon after the event prefix.
			idx := strings.Index(msg.Channel, prefix)
			if idx < 0 {
				continue
			}
			key := msg.Channel[idx+len(prefix):]
			if key == "" {
				continue
			}
			b.emit(key)
		}
	}
}

func (b *RedisBroadcaster) emit(key string) {
	b.mu.Lock()
	fns := make([]func(string), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, key string) {
	payload, err := json.Marshal(changeMessage{Type: b.channel, Key: key})
	if err != nil {
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("change broadcast failed",
			logger.String("key", key),
			logger.Error(err))
	}
}

func (b *RedisBroadcaster) Subscribe(fn func(key string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *RedisBroadcaster) Close() error {
	b.cancel()
	b.done.Wait()
	b.mu.Lock()
	b.listeners = make(map[int]func(string))
	b.mu.Unlock()
	return nil
}
