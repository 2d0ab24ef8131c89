package models

import "time"

// Marketplace roles.
const (
	RoleFarmer      = "farmer"
	RoleMerchant    = "merchant"
	RoleTransporter = "transporter"
	RoleAdmin       = "admin"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255); not null" json:"name"`
	Email     string    `gorm:"type:varchar(255); unique;not null" json:"email"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone"`
	Password  string    `gorm:"type:varchar(255); not null" json:"-"`
	Role      string    `gorm:"type:varchar(20); not null;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValidRole reports whether role is one of the four marketplace roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleFarmer, RoleMerchant, RoleTransporter, RoleAdmin:
		return true
	}
	return false
}
