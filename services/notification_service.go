package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
	"gorm.io/gorm"
)

// NotificationService is the pull side of notifications: the feed, unread
// state and route resolution.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// List returns a page of the user's feed, most urgent first and newest first
// within the same priority.
func (s *NotificationService) List(ctx context.Context, userID uint, page, perPage int, unreadOnly bool) ([]NotificationView, int64, error) {
	page, perPage = NormalizePage(page, perPage)

	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var rows []models.Notification
	if err := q.Order("priority ASC, created_at DESC, id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	views := make([]NotificationView, 0, len(rows))
	for _, n := range rows {
		views = append(views, NewNotificationView(n))
	}
	return views, total, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead flags one notification as read. Only the recipient may do it,
// and a read notification stays read.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uint) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	return s.markRead(ctx, id)
}

// MarkAllAsRead returns how many notifications changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Open resolves where the notification leads for role and marks it read if
// the route asks for it.
func (s *NotificationService) Open(ctx context.Context, id, userID uint, role string) (notifyroute.Route, error) {
	n, err := s.owned(ctx, id, userID)
	if err != nil {
		return notifyroute.Route{}, err
	}
	route := notifyroute.ResolveRoute(n.Type, n.Payload(), notifyroute.Role(role), n.IsRead)
	if route.MarkAsRead {
		if err := s.markRead(ctx, id); err != nil {
			return notifyroute.Route{}, err
		}
	}
	return route, nil
}

// Resolve routes a notification the client already holds, such as one that
// arrived over the websocket.
func (s *NotificationService) Resolve(t notifyroute.Type, metadata map[string]interface{}, role string, isRead bool) (notifyroute.Route, notifyroute.DisplayProps) {
	p := notifyroute.PayloadFromMetadata(t, metadata)
	return notifyroute.ResolveRoute(t, p, notifyroute.Role(role), isRead), notifyroute.Display(t)
}

func (s *NotificationService) owned(ctx context.Context, id, userID uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	if n.UserID != userID {
		return nil, forbidden("not the recipient of this notification")
	}
	return &n, nil
}

func (s *NotificationService) markRead(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
