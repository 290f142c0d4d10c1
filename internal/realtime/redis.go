package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/pushp314/chatsync/pkg/logger"
)

// RedisTransport implements Transport on a shared Redis instance. Change
// events ride plain pub/sub topics; presence channels keep their tracked
// entries in a hash and broadcast a sync ping whenever the hash changes, so
// every subscriber rebuilds full state from scratch.
type RedisTransport struct {
	rdb *redis.Client
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func feedTopic(table string) string {
	return "changes:" + table
}

func presenceKey(name string) string {
	return "presence:" + name
}

func presenceTopic(name string) string {
	return "presence:sync:" + name
}

func (t *RedisTransport) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return t.rdb.Publish(ctx, feedTopic(ev.Table), raw).Err()
}

func (t *RedisTransport) Feed(table string, handler func(Event)) (io.Closer, error) {
	ctx := context.Background()
	sub := t.rdb.Subscribe(ctx, feedTopic(table))

	// Force the subscription to be established before returning
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn().Err(err).Str("table", table).Msg("Dropping malformed change event")
				continue
			}
			handler(ev)
		}
	}()

	return sub, nil
}

// redisChannel is one presence channel subscription
type redisChannel struct {
	rdb    *redis.Client
	name   string
	selfID string
	onSync SyncFunc

	sub     *redis.PubSub
	closeMu sync.Mutex
	closed  bool
}

func (t *RedisTransport) Subscribe(name, selfID string, onSync SyncFunc) (Channel, error) {
	ctx := context.Background()
	ch := &redisChannel{
		rdb:    t.rdb,
		name:   name,
		selfID: selfID,
		onSync: onSync,
	}

	ch.sub = t.rdb.Subscribe(ctx, presenceTopic(name))
	if _, err := ch.sub.Receive(ctx); err != nil {
		ch.sub.Close()
		return nil, err
	}

	go func() {
		for range ch.sub.Channel() {
			ch.sync(context.Background())
		}
	}()

	// Initial state before any peer changes arrive
	ch.sync(ctx)

	return ch, nil
}

// sync rebuilds the full channel state from the hash and hands it to the
// subscriber callback
func (c *redisChannel) sync(ctx context.Context) {
	entries, err := c.rdb.HGetAll(ctx, presenceKey(c.name)).Result()
	if err != nil {
		logger.Warn().Err(err).Str("channel", c.name).Msg("Presence sync failed")
		return
	}

	state := make(PresenceState, len(entries))
	for userID, raw := range entries {
		var entry PresenceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		state[userID] = entry
	}
	c.onSync(state)
}

func (c *redisChannel) Track(ctx context.Context, entry PresenceEntry) error {
	if entry.UserID != c.selfID {
		return fmt.Errorf("channel %s: cannot track entry for another user", c.name)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.rdb.HSet(ctx, presenceKey(c.name), c.selfID, raw).Err(); err != nil {
		return err
	}
	return c.rdb.Publish(ctx, presenceTopic(c.name), "sync").Err()
}

func (c *redisChannel) Untrack(ctx context.Context) error {
	if err := c.rdb.HDel(ctx, presenceKey(c.name), c.selfID).Err(); err != nil {
		return err
	}
	return c.rdb.Publish(ctx, presenceTopic(c.name), "sync").Err()
}

func (c *redisChannel) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	// Untrack first so peers observe the departure promptly
	if err := c.Untrack(context.Background()); err != nil {
		logger.Warn().Err(err).Str("channel", c.name).Msg("Untrack on close failed")
	}
	return c.sub.Close()
}
