package models

import (
	"time"

	"github.com/yeremiapane/agrimarket/notifyroute"
	"gorm.io/datatypes"
)

// Notification tells UserID about a change made by someone else. RelatedID
// points back at the bid, booking or chat partner that triggered it.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index:idx_notifications_feed,priority:1" json:"user_id"`
	Type      notifyroute.Type  `gorm:"type:varchar(40);not null" json:"type"`
	Title     string            `gorm:"type:varchar(100);not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	IsRead    bool              `gorm:"not null;default:false" json:"is_read"`
	RelatedID uint              `json:"related_id"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Priority  int               `gorm:"not null;default:5;index:idx_notifications_feed,priority:2" json:"priority"`
	CreatedAt time.Time         `gorm:"not null;index:idx_notifications_feed,priority:3" json:"created_at"`
}

// Payload decodes Metadata into the typed payload for the notification type.
func (n Notification) Payload() notifyroute.Payload {
	return notifyroute.PayloadFromMetadata(n.Type, n.Metadata)
}
