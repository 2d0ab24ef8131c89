package models

import "time"

type Vehicle struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TransporterID  uint      `gorm:"not null;index" json:"transporter_id"`
	VehicleType    string    `gorm:"type:varchar(50);not null" json:"vehicle_type"`
	RegistrationNo string    `gorm:"type:varchar(32);not null;unique" json:"registration_no"`
	CapacityKg     float64   `gorm:"type:decimal(10,2);not null" json:"capacity_kg"`
	PricePerKm     float64   `gorm:"type:decimal(10,2);not null" json:"price_per_km"`
	Available      bool      `gorm:"not null;default:true" json:"available"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
	BookingInTransit BookingStatus = "in_transit"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// VehicleBooking is a request by a farmer or merchant to move goods with a
// transporter's vehicle, optionally tied to a bid.
type VehicleBooking struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	VehicleID     uint          `gorm:"not null;index" json:"vehicle_id"`
	Vehicle       *Vehicle      `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	TransporterID uint          `gorm:"not null;index" json:"transporter_id"`
	BookedBy      uint          `gorm:"not null;index" json:"booked_by"`
	BidID         *uint         `json:"bid_id,omitempty"`
	Pickup        string        `gorm:"type:varchar(255);not null" json:"pickup"`
	Dropoff       string        `gorm:"type:varchar(255);not null" json:"dropoff"`
	ScheduledAt   time.Time     `json:"scheduled_at"`
	Status        BookingStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
