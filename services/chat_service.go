package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
	"gorm.io/gorm"
)

const maxChatBody = 2000

// PresenceChecker reports which users have a live connection.
type PresenceChecker interface {
	Online(ids []uint) map[uint]bool
}

type ChatService struct {
	db       *gorm.DB
	hub      Dispatcher
	presence PresenceChecker
}

func NewChatService(db *gorm.DB, hub Dispatcher, presence PresenceChecker) *ChatService {
	if hub == nil {
		hub = NopDispatcher{}
	}
	return &ChatService{db: db, hub: hub, presence: presence}
}

// ChatSummary is one row of the recent chats list.
type ChatSummary struct {
	UserID      uint               `json:"user_id"`
	Name        string             `json:"name"`
	Role        string             `json:"role"`
	LastMessage models.ChatMessage `json:"last_message"`
	Unread      int64              `json:"unread"`
	Online      bool               `json:"online"`
}

// Send stores a message and notifies the recipient.
func (s *ChatService) Send(ctx context.Context, senderID, recipientID uint, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalid("body", "must not be empty")
	}
	if utf8.RuneCountInString(body) > maxChatBody {
		return nil, invalid("body", "must be at most %d characters", maxChatBody)
	}
	if senderID == recipientID {
		return nil, invalid("recipient_id", "cannot message yourself")
	}

	var (
		msg  models.ChatMessage
		note models.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.Where("id IN ?", []uint{senderID, recipientID}).Find(&users).Error; err != nil {
			return fmt.Errorf("failed to load chat users: %w", err)
		}
		if len(users) != 2 {
			return ErrUserNotFound
		}
		senderName := users[0].Name
		if users[0].ID != senderID {
			senderName = users[1].Name
		}

		msg = models.ChatMessage{SenderID: senderID, RecipientID: recipientID, Body: body}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		note = newNotification(recipientID, notifyroute.TypeChatMessage, "New message from "+senderName,
			preview(body), senderID, notifyroute.ChatMessagePayload{ChatUserID: idString(senderID)})
		if err := tx.Create(&note).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.Dispatch(recipientID, EventChatMessage, msg)
	pushNotifications(s.hub, []models.Notification{note})
	return &msg, nil
}

// Conversation returns the thread between userID and otherID, oldest first,
// and marks what otherID sent as read.
func (s *ChatService) Conversation(ctx context.Context, userID, otherID uint, limit int) ([]models.ChatMessage, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	db := s.db.WithContext(ctx)

	var msgs []models.ChatMessage
	err := db.Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID, otherID, otherID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	now := time.Now()
	if err := db.Model(&models.ChatMessage{}).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", otherID, userID).
		Update("read_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	for i := range msgs {
		if msgs[i].RecipientID == userID && msgs[i].ReadAt == nil {
			msgs[i].ReadAt = &now
		}
	}
	return msgs, nil
}

// RecentChats lists one entry per counterpart, most recent conversation
// first.
func (s *ChatService) RecentChats(ctx context.Context, userID uint) ([]ChatSummary, error) {
	db := s.db.WithContext(ctx)

	var msgs []models.ChatMessage
	if err := db.Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}

	index := make(map[uint]int)
	summaries := make([]ChatSummary, 0)
	for _, m := range msgs {
		other := m.Counterpart(userID)
		i, seen := index[other]
		if !seen {
			i = len(summaries)
			index[other] = i
			summaries = append(summaries, ChatSummary{UserID: other, LastMessage: m})
		}
		if m.RecipientID == userID && m.ReadAt == nil {
			summaries[i].Unread++
		}
	}
	if len(summaries) == 0 {
		return summaries, nil
	}

	ids := make([]uint, 0, len(summaries))
	for _, cs := range summaries {
		ids = append(ids, cs.UserID)
	}
	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load chat users: %w", err)
	}
	for _, u := range users {
		summaries[index[u.ID]].Name = u.Name
		summaries[index[u.ID]].Role = u.Role
	}
	online := s.Presence(ids)
	for i := range summaries {
		summaries[i].Online = online[summaries[i].UserID]
	}
	return summaries, nil
}

// Presence reports which of ids are connected right now.
func (s *ChatService) Presence(ids []uint) map[uint]bool {
	if s.presence == nil {
		return make(map[uint]bool, len(ids))
	}
	return s.presence.Online(ids)
}

func preview(body string) string {
	const n = 80
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	r := []rune(body)
	return string(r[:n]) + "..."
}
