// Package realtime defines the live transport the sync core runs on: a
// change feed of durable-store events and ephemeral presence channels.
// State on a presence channel exists only while participants are connected;
// it has no durable representation.
package realtime

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// Tables carried on the change feed
const (
	TableMessages     = "messages"
	TableReadReceipts = "message_read_receipts"
	TableReactions    = "message_reactions"
)

// Event kinds
const (
	EventInsert = "INSERT"
	EventDelete = "DELETE"
)

// Event is one change-feed notification. Payload is the affected row as
// JSON (the new row for inserts, the old row for deletes).
type Event struct {
	Table   string          `json:"table"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// PresenceEntry is the state one participant tracks on an ephemeral channel.
// Presence and typing reuse the same shape; typing entries additionally set
// DisplayName and IsTyping.
type PresenceEntry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	IsTyping    bool      `json:"is_typing,omitempty"`
	OnlineAt    time.Time `json:"online_at"`
}

// PresenceState is the full channel state, keyed by user id. Each
// participant writes only its own entry.
type PresenceState map[string]PresenceEntry

// SyncFunc receives the full rebuilt channel state on every sync cycle.
// Implementations must deliver full state, never incremental diffs.
type SyncFunc func(state PresenceState)

// Channel is a live ephemeral presence channel
type Channel interface {
	// Track registers (or re-registers) the caller's entry on the channel
	Track(ctx context.Context, entry PresenceEntry) error
	// Untrack removes the caller's entry
	Untrack(ctx context.Context) error
	// Close untracks and tears the subscription down
	Close() error
}

// Transport opens presence channels and change-feed subscriptions.
// Reconnection and backoff are the transport's concern, not the sync core's.
type Transport interface {
	// Subscribe opens a presence channel. onSync fires once with the current
	// state and again on every subsequent membership change.
	Subscribe(name, selfID string, onSync SyncFunc) (Channel, error)

	// Feed subscribes to change events for one table. The returned closer
	// tears the subscription down.
	Feed(table string, handler func(Event)) (io.Closer, error)

	// Publish emits a change event to all feed subscribers. Called by the
	// store after a successful durable write.
	Publish(ctx context.Context, ev Event) error
}

// InsertEvent builds an INSERT event for a row
func InsertEvent(table string, row interface{}) (Event, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return Event{}, err
	}
	return Event{Table: table, Kind: EventInsert, Payload: payload}, nil
}

// DeleteEvent builds a DELETE event for a row
func DeleteEvent(table string, row interface{}) (Event, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return Event{}, err
	}
	return Event{Table: table, Kind: EventDelete, Payload: payload}, nil
}
