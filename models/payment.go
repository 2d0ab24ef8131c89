package models

import (
	"time"
)

// Payment records that the merchant paid for an accepted bid. One per bid.
type Payment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BidID     uint      `json:"bid_id" gorm:"not null;uniqueIndex"`
	Amount    float64   `json:"amount" gorm:"type:decimal(14,2);not null"`
	Method    string    `json:"method" gorm:"type:varchar(32);not null;default:'bank_transfer'"`
	Reference string    `json:"reference" gorm:"type:varchar(128)"`
	PaidAt    time.Time `json:"paid_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}
