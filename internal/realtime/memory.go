package realtime

import (
	"context"
	"io"
	"sync"
)

// MemoryTransport is an in-process Transport. Feed events and presence
// syncs are delivered synchronously to every subscriber, which makes it
// deterministic enough for tests; it also backs a single-process local mode.
type MemoryTransport struct {
	mu       sync.Mutex
	feeds    map[string][]*memoryFeed
	channels map[string]*memoryChannelState
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		feeds:    make(map[string][]*memoryFeed),
		channels: make(map[string]*memoryChannelState),
	}
}

type memoryFeed struct {
	transport *MemoryTransport
	table     string
	handler   func(Event)
	closed    bool
}

func (f *memoryFeed) Close() error {
	f.transport.mu.Lock()
	f.closed = true
	f.transport.mu.Unlock()
	return nil
}

func (t *MemoryTransport) Feed(table string, handler func(Event)) (io.Closer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := &memoryFeed{transport: t, table: table, handler: handler}
	t.feeds[table] = append(t.feeds[table], f)
	return f, nil
}

func (t *MemoryTransport) Publish(ctx context.Context, ev Event) error {
	t.mu.Lock()
	feeds := make([]*memoryFeed, 0, len(t.feeds[ev.Table]))
	for _, f := range t.feeds[ev.Table] {
		if !f.closed {
			feeds = append(feeds, f)
		}
	}
	t.mu.Unlock()

	for _, f := range feeds {
		f.handler(ev)
	}
	return nil
}

// memoryChannelState is the shared state of one named presence channel
type memoryChannelState struct {
	entries     map[string]PresenceEntry
	subscribers []*memoryChannel
}

type memoryChannel struct {
	transport *MemoryTransport
	name      string
	selfID    string
	onSync    SyncFunc
	closed    bool
}

func (t *MemoryTransport) Subscribe(name, selfID string, onSync SyncFunc) (Channel, error) {
	t.mu.Lock()
	state, ok := t.channels[name]
	if !ok {
		state = &memoryChannelState{entries: make(map[string]PresenceEntry)}
		t.channels[name] = state
	}
	ch := &memoryChannel{transport: t, name: name, selfID: selfID, onSync: onSync}
	state.subscribers = append(state.subscribers, ch)
	snapshot := snapshotState(state.entries)
	t.mu.Unlock()

	onSync(snapshot)
	return ch, nil
}

func snapshotState(entries map[string]PresenceEntry) PresenceState {
	state := make(PresenceState, len(entries))
	for id, e := range entries {
		state[id] = e
	}
	return state
}

// broadcast delivers the full rebuilt state to every live subscriber
func (t *MemoryTransport) broadcast(name string) {
	t.mu.Lock()
	state, ok := t.channels[name]
	if !ok {
		t.mu.Unlock()
		return
	}
	snapshot := snapshotState(state.entries)
	subs := make([]*memoryChannel, 0, len(state.subscribers))
	for _, s := range state.subscribers {
		if !s.closed {
			subs = append(subs, s)
		}
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.onSync(snapshot)
	}
}

func (c *memoryChannel) Track(ctx context.Context, entry PresenceEntry) error {
	c.transport.mu.Lock()
	state := c.transport.channels[c.name]
	state.entries[c.selfID] = entry
	c.transport.mu.Unlock()

	c.transport.broadcast(c.name)
	return nil
}

func (c *memoryChannel) Untrack(ctx context.Context) error {
	c.transport.mu.Lock()
	state := c.transport.channels[c.name]
	delete(state.entries, c.selfID)
	c.transport.mu.Unlock()

	c.transport.broadcast(c.name)
	return nil
}

func (c *memoryChannel) Close() error {
	c.transport.mu.Lock()
	if c.closed {
		c.transport.mu.Unlock()
		return nil
	}
	c.closed = true
	state := c.transport.channels[c.name]
	delete(state.entries, c.selfID)
	c.transport.mu.Unlock()

	c.transport.broadcast(c.name)
	return nil
}
