package models

import "time"

// Product is a farmer's listing. Quantity is what is still available to bid on.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FarmerID    uint      `gorm:"not null;index" json:"farmer_id"`
	Farmer      *User     `gorm:"foreignKey:FarmerID" json:"farmer,omitempty"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Unit        string    `gorm:"type:varchar(16);not null;default:'kg'" json:"unit"`
	Price       float64   `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity    float64   `gorm:"type:decimal(12,3);not null" json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
