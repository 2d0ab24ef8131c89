package models

import "time"

type BidStatus string

const (
	BidPending   BidStatus = "Pending"
	BidAccepted  BidStatus = "Accepted"
	BidRejected  BidStatus = "Rejected"
	BidConfirmed BidStatus = "Confirmed"
	BidPaid      BidStatus = "Paid"
	BidDelivered BidStatus = "Delivered"
	BidCancelled BidStatus = "Cancelled"
)

// Terminal reports whether no transition leaves s.
func (s BidStatus) Terminal() bool {
	return s == BidRejected || s == BidDelivered || s == BidCancelled
}

// Bid is a merchant's offer for part of a product listing. BidAmount is the
// offered price per unit, OrderWeight the quantity wanted.
type Bid struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProductID     uint      `gorm:"not null;index" json:"product_id"`
	ProductName   string    `gorm:"type:varchar(255);not null" json:"product_name"`
	BidAmount     float64   `gorm:"type:decimal(12,2);not null" json:"bid_amount"`
	OrderWeight   float64   `gorm:"type:decimal(12,3);not null" json:"order_weight"`
	FarmerID      uint      `gorm:"not null;index" json:"farmer_id"`
	MerchantID    uint      `gorm:"not null;index" json:"merchant_id"`
	MerchantName  string    `gorm:"type:varchar(255)" json:"merchant_name"`
	MerchantPhone string    `gorm:"type:varchar(32)" json:"merchant_phone"`
	Status        BidStatus `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}
