package models

import "time"

type ChatMessage struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SenderID    uint       `gorm:"not null;index" json:"sender_id"`
	RecipientID uint       `gorm:"not null;index" json:"recipient_id"`
	Body        string     `gorm:"type:text;not null" json:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
}

// Counterpart returns the other participant from userID's point of view.
func (m ChatMessage) Counterpart(userID uint) uint {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}
