package chat

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/logger"
)

// Reconciler holds the session's single message-feed subscription and
// merges confirmed inserts into the timeline. Every insert visible to this
// client arrives here; filtering by conversation happens locally.
type Reconciler struct {
	store     store.Store
	session   *auth.Session
	timeline  *Timeline
	directory *Directory
	receipts  *Receipts

	feed io.Closer
}

// NewReconciler subscribes to the message change feed. Established once per
// authenticated session; reconnection is the transport's concern.
func NewReconciler(transport realtime.Transport, st store.Store, session *auth.Session,
	timeline *Timeline, directory *Directory, receipts *Receipts) (*Reconciler, error) {

	r := &Reconciler{
		store:     st,
		session:   session,
		timeline:  timeline,
		directory: directory,
		receipts:  receipts,
	}
	feed, err := transport.Feed(realtime.TableMessages, r.onEvent)
	if err != nil {
		return nil, err
	}
	r.feed = feed
	return r, nil
}

func (r *Reconciler) onEvent(ev realtime.Event) {
	if ev.Kind != realtime.EventInsert {
		return
	}
	var msg models.Message
	if err := json.Unmarshal(ev.Payload, &msg); err != nil {
		logger.Warn().Err(err).Msg("Dropping undecodable message event")
		return
	}

	appended, needsProfile := r.timeline.reconcile(msg)

	if appended && needsProfile {
		// Progressive enrichment: the entry renders now, the profile lands
		// whenever the fetch resolves
		go r.enrichSender(msg.ID, msg.SenderID)
	}

	if appended && msg.SenderID != r.session.UserID() {
		// Auto-read: the message is visible in the active timeline
		go func() {
			if err := r.receipts.MarkAsRead(context.Background(), msg.ID); err != nil {
				logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Auto-read failed")
			}
		}()
	}

	// Coarse invalidation keeps directory ordering and previews current
	r.directory.Invalidate()
}

func (r *Reconciler) enrichSender(messageID, senderID string) {
	profiles, err := r.store.Profiles(context.Background(), []string{senderID})
	if err != nil || len(profiles) == 0 {
		if err != nil {
			logger.Warn().Err(err).Str("user_id", senderID).Msg("Sender enrichment failed")
		}
		return
	}
	r.timeline.patchSender(messageID, profiles[0])
}

// Close tears the feed subscription down
func (r *Reconciler) Close() error {
	return r.feed.Close()
}
