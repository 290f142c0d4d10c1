package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/pkg/logger"
)

// GormStore implements Store on a gorm connection and publishes a change
// event after every successful durable write, so every connected client's
// reconciler observes it. Event delivery is best-effort: a publish failure
// is logged, never surfaced, and never rolls back the write.
type GormStore struct {
	db        *gorm.DB
	transport realtime.Transport
}

func NewGormStore(db *gorm.DB, transport realtime.Transport) *GormStore {
	return &GormStore{db: db, transport: transport}
}

// Migrate creates the chat tables
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.Profile{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageReadReceipt{},
		&models.MutedUser{},
	)
}

func (s *GormStore) publishInsert(ctx context.Context, table string, row interface{}) {
	s.publish(ctx, table, row, realtime.InsertEvent)
}

func (s *GormStore) publishDelete(ctx context.Context, table string, row interface{}) {
	s.publish(ctx, table, row, realtime.DeleteEvent)
}

func (s *GormStore) publish(ctx context.Context, table string, row interface{}, build func(string, interface{}) (realtime.Event, error)) {
	if s.transport == nil {
		return
	}
	ev, err := build(table, row)
	if err != nil {
		logger.Error().Err(err).Str("table", table).Msg("Failed to encode change event")
		return
	}
	if err := s.transport.Publish(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("table", table).Msg("Failed to publish change event")
	}
}

// ----- Conversations -----

// UserConversations returns every conversation the user participates in,
// deduplicated by id. Membership may appear via multiple underlying rows.
func (s *GormStore) UserConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	memberOf := s.db.Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Where("id IN (?)", memberOf).
		Order("updated_at desc").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// DirectCounterparts returns conversationID -> other participant for the
// given conversations. Conversations with more than one other participant
// keep the first row scanned; callers only pass direct conversations.
func (s *GormStore) DirectCounterparts(ctx context.Context, conversationIDs []string, excludeUserID string) (map[string]string, error) {
	if len(conversationIDs) == 0 {
		return map[string]string{}, nil
	}
	var rows []models.ConversationParticipant
	err := s.db.WithContext(ctx).
		Where("conversation_id IN ? AND user_id <> ?", conversationIDs, excludeUserID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counterparts := make(map[string]string, len(rows))
	for _, row := range rows {
		if _, ok := counterparts[row.ConversationID]; !ok {
			counterparts[row.ConversationID] = row.UserID
		}
	}
	return counterparts, nil
}

func (s *GormStore) CreateConversation(ctx context.Context, title string, isGroup bool, participantIDs []string) (*models.Conversation, error) {
	conversation := &models.Conversation{
		Title:   title,
		IsGroup: isGroup,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		now := time.Now()
		for _, userID := range participantIDs {
			participant := models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         userID,
				JoinedAt:       now,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// FindDirectConversation returns the existing two-party direct conversation
// between the given users, or nil when none exists.
func (s *GormStore) FindDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	query := `
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants p1 ON c.id = p1.conversation_id AND p1.user_id = ?
		JOIN conversation_participants p2 ON c.id = p2.conversation_id AND p2.user_id = ?
		WHERE c.is_group = ?
		AND (SELECT count(*) FROM conversation_participants p WHERE p.conversation_id = c.id) = 2
		LIMIT 1
	`
	var conversationID string
	row := s.db.WithContext(ctx).Raw(query, userA, userB, false).Row()
	if err := row.Scan(&conversationID); err != nil {
		// No matching row is the common case, not an error
		return nil, nil
	}

	var conversation models.Conversation
	if err := s.db.WithContext(ctx).First(&conversation, "id = ?", conversationID).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ----- Profiles -----

// Profiles is the batched restricted lookup: one call for a whole id set,
// projecting only display name, username and avatar. Phone and contact
// fields are never selected.
func (s *GormStore) Profiles(ctx context.Context, userIDs []string) ([]models.ProfileView, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var views []models.ProfileView
	err := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Select("user_id, display_name, username, avatar_url").
		Where("user_id IN ?", userIDs).
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *GormStore) SelfProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *GormStore) SaveCustomization(ctx context.Context, userID string, c models.Customization) error {
	c.Version = models.CustomizationVersion
	return s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("customization", &c).Error
}

// ----- Messages -----

// ConversationMessages returns the full ordered history, ascending by
// creation time with ties broken by id.
func (s *GormStore) ConversationMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertMessage persists a message under a store-assigned id (any id on the
// way in is ignored) and publishes the insert to the change feed. The
// correlation token rides along on the row and the event.
func (s *GormStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	row := models.Message{
		ConversationID:  msg.ConversationID,
		SenderID:        msg.SenderID,
		Content:         msg.Content,
		Type:            msg.Type,
		FileURL:         msg.FileURL,
		CreatedAt:       msg.CreatedAt,
		ClientMessageID: msg.ClientMessageID,
	}
	if row.Type == "" {
		row.Type = models.MessageTypeText
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	// Touch the conversation so directory ordering stays current
	touch := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", row.ConversationID).
		Update("updated_at", row.CreatedAt)
	if touch.Error != nil {
		logger.Warn().Err(touch.Error).Str("conversation_id", row.ConversationID).Msg("Conversation timestamp touch failed")
	}

	*msg = row
	s.publishInsert(ctx, realtime.TableMessages, &row)
	return nil
}

// conversationOf resolves the conversation a message belongs to
func (s *GormStore) conversationOf(ctx context.Context, messageID string) (string, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Select("conversation_id").
		First(&msg, "id = ?", messageID).Error
	if err != nil {
		return "", err
	}
	return msg.ConversationID, nil
}

// ----- Read receipts -----

// InsertReadReceipt is idempotent: a duplicate (message, user) pair is
// silently a no-op and produces no second row and no second event.
func (s *GormStore) InsertReadReceipt(ctx context.Context, messageID, userID string) error {
	conversationID, err := s.conversationOf(ctx, messageID)
	if err != nil {
		return err
	}
	receipt := models.MessageReadReceipt{
		MessageID:      messageID,
		UserID:         userID,
		ConversationID: conversationID,
		ReadAt:         time.Now(),
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&receipt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.publishInsert(ctx, realtime.TableReadReceipts, &receipt)
	}
	return nil
}

func (s *GormStore) ConversationReadReceipts(ctx context.Context, conversationID string) ([]models.MessageReadReceipt, error) {
	var receipts []models.MessageReadReceipt
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// ----- Reactions -----

// InsertReaction is idempotent per (message, user, emoji)
func (s *GormStore) InsertReaction(ctx context.Context, messageID, userID, emoji string) error {
	conversationID, err := s.conversationOf(ctx, messageID)
	if err != nil {
		return err
	}
	reaction := models.MessageReaction{
		MessageID:      messageID,
		UserID:         userID,
		Emoji:          emoji,
		ConversationID: conversationID,
		CreatedAt:      time.Now(),
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reaction)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.publishInsert(ctx, realtime.TableReactions, &reaction)
	}
	return nil
}

// DeleteReaction is a no-op when no matching row exists
func (s *GormStore) DeleteReaction(ctx context.Context, messageID, userID, emoji string) error {
	var reaction models.MessageReaction
	err := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		First(&reaction).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.MessageReaction{}, "id = ?", reaction.ID).Error; err != nil {
		return err
	}
	s.publishDelete(ctx, realtime.TableReactions, &reaction)
	return nil
}

func (s *GormStore) ConversationReactions(ctx context.Context, conversationID string) ([]models.MessageReaction, error) {
	var reactions []models.MessageReaction
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// ----- Mutes -----

func (s *GormStore) MutedUserIDs(ctx context.Context, ownerID string) ([]string, error) {
	var userIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.MutedUser{}).
		Where("user_id = ?", ownerID).
		Pluck("muted_user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (s *GormStore) MuteUser(ctx context.Context, ownerID, targetID string) error {
	mute := models.MutedUser{
		UserID:      ownerID,
		MutedUserID: targetID,
		CreatedAt:   time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&mute).Error
}

func (s *GormStore) UnmuteUser(ctx context.Context, ownerID, targetID string) error {
	return s.db.WithContext(ctx).
		Delete(&models.MutedUser{}, "user_id = ? AND muted_user_id = ?", ownerID, targetID).Error
}
