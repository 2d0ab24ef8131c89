// Package notifyroute maps a notification to the screen it should open and to
// the way it is displayed in a user's feed. Everything here is a pure lookup
// over static tables; nothing touches the database or the network.
package notifyroute

import "strings"

// Type is the tag stored on every notification.
type Type string

// Canonical notification types. Producers should emit these; the legacy
// spellings below are accepted as aliases.
const (
	TypeNewBid              Type = "newBid"
	TypeBidAccepted         Type = "bidAccepted"
	TypeBidRejected         Type = "bidRejected"
	TypePaymentReceived     Type = "paymentReceived"
	TypeOrderConfirmed      Type = "order_confirmed"
	TypeChatMessage         Type = "chatMessage"
	TypeVehicleBooked       Type = "vehicle_booked"
	TypeVehicleStatusUpdate Type = "vehicleStatusUpdate"
	TypeCollectionUpdate    Type = "collection_update"
	TypeGeneral             Type = "general"
)

var aliases = map[Type]Type{
	"bid_received":     TypeNewBid,
	"bid_accepted":     TypeBidAccepted,
	"bid_rejected":     TypeBidRejected,
	"payment_received": TypePaymentReceived,
	"message":          TypeChatMessage,
	"new_message":      TypeChatMessage,
	"chat":             TypeChatMessage,
	"vehicleBooked":    TypeVehicleBooked,
}

// Canonical resolves aliases. Unknown types are returned unchanged and
// reported as not known.
func Canonical(t Type) (Type, bool) {
	if c, ok := aliases[t]; ok {
		return c, true
	}
	if _, ok := routes[t]; ok {
		return t, true
	}
	return t, false
}

// Role is the viewing user's category.
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleMerchant    Role = "merchant"
	RoleTransporter Role = "transporter"
	RoleAdmin       Role = "admin"
)

// ParseRole normalises case and surrounding space. The second result is false
// for anything that is not one of the four marketplace roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleFarmer, RoleMerchant, RoleTransporter, RoleAdmin:
		return r, true
	}
	return r, false
}
