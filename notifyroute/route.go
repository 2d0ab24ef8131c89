package notifyroute

import (
	"net/url"
	"strings"
)

// Route is where the client navigates when the notification is opened.
type Route struct {
	Path       string `json:"path"`
	MarkAsRead bool   `json:"mark_as_read"`
}

// entry is either a literal path (Field == "") or a template whose
// placeholder "{}" is filled with the named payload field.
type entry struct {
	Path     string
	Template string
	Field    string
}

func lit(p string) entry { return entry{Path: p} }

func tpl(bare, template, field string) entry {
	return entry{Path: bare, Template: template, Field: field}
}

var routes = map[Type]map[Role]entry{
	TypeNewBid: {
		RoleFarmer:      tpl("/accept-reject-bids", "/accept-reject-bids?itemId={}", KeyItemID),
		RoleMerchant:    lit("/merchant/bids"),
		RoleTransporter: lit("/transporter/dashboard"),
		RoleAdmin:       tpl("/admin/bids", "/admin/bids?bidId={}", KeyBidID),
	},
	TypeBidAccepted: {
		RoleFarmer:      tpl("/order", "/order?bidId={}", KeyBidID),
		RoleMerchant:    tpl("/merchant/bids", "/merchant/bids?bidId={}&status=accepted", KeyBidID),
		RoleTransporter: lit("/transporter/dashboard"),
		RoleAdmin:       tpl("/admin/bids", "/admin/bids?bidId={}", KeyBidID),
	},
	TypeBidRejected: {
		RoleFarmer:      tpl("/accept-reject-bids", "/accept-reject-bids?itemId={}", KeyItemID),
		RoleMerchant:    tpl("/merchant/bids", "/merchant/bids?bidId={}&status=rejected", KeyBidID),
		RoleTransporter: lit("/transporter/dashboard"),
		RoleAdmin:       tpl("/admin/bids", "/admin/bids?bidId={}", KeyBidID),
	},
	TypePaymentReceived: {
		RoleFarmer:      tpl("/order", "/order?bidId={}", KeyBidID),
		RoleMerchant:    tpl("/merchant/orders", "/merchant/orders?bidId={}", KeyBidID),
		RoleTransporter: lit("/transporter/dashboard"),
		RoleAdmin:       tpl("/admin/payments", "/admin/payments?bidId={}", KeyBidID),
	},
	TypeOrderConfirmed: {
		RoleFarmer:      tpl("/order", "/order?bidId={}", KeyBidID),
		RoleMerchant:    tpl("/merchant/orders", "/merchant/orders?bidId={}", KeyBidID),
		RoleTransporter: lit("/transporter/dashboard"),
		RoleAdmin:       tpl("/admin/bids", "/admin/bids?bidId={}", KeyBidID),
	},
	TypeChatMessage: {
		RoleFarmer:      tpl("/messages", "/messages?chatWith={}", KeyChatUserID),
		RoleMerchant:    tpl("/merchant/messages", "/merchant/messages?chatWith={}", KeyChatUserID),
		RoleTransporter: tpl("/transporter/inbox", "/transporter/inbox?chatWith={}", KeyChatUserID),
		RoleAdmin:       tpl("/admin/messages", "/admin/messages?chatWith={}", KeyChatUserID),
	},
	TypeVehicleBooked: {
		RoleFarmer:      tpl("/vehicle-bookings", "/vehicle-bookings?bookingId={}", KeyBookingID),
		RoleMerchant:    tpl("/merchant/vehicle-bookings", "/merchant/vehicle-bookings?bookingId={}", KeyBookingID),
		RoleTransporter: tpl("/transporter/bookings", "/transporter/bookings?bookingId={}", KeyBookingID),
		RoleAdmin:       lit("/admin/vehicles"),
	},
	TypeVehicleStatusUpdate: {
		RoleFarmer:      tpl("/vehicle-bookings", "/vehicle-bookings?vehicleId={}", KeyVehicleID),
		RoleMerchant:    tpl("/merchant/vehicle-bookings", "/merchant/vehicle-bookings?vehicleId={}", KeyVehicleID),
		RoleTransporter: tpl("/transporter/vehicles", "/transporter/vehicles?vehicleId={}", KeyVehicleID),
		RoleAdmin:       lit("/admin/vehicles"),
	},
	TypeCollectionUpdate: {
		RoleFarmer:      tpl("/order", "/order?bidId={}", KeyBidID),
		RoleMerchant:    tpl("/merchant/orders", "/merchant/orders?bidId={}", KeyBidID),
		RoleTransporter: lit("/transporter/collections"),
		RoleAdmin:       lit("/admin/dashboard"),
	},
	TypeGeneral: {
		RoleFarmer:      lit("/"),
		RoleMerchant:    lit("/merchant/dashboard"),
		RoleTransporter: lit("/transporter/dashboard"),
		RoleAdmin:       lit("/admin/dashboard"),
	},
}

// ResolveRoute picks the navigation target for a notification of type t seen
// by role. It is total: every input yields a non-empty path.
//
// A general notification whose payload carries both a bid and a merchant is
// routed as newBid. Some producers still emit bids as general; they should be
// fixed to emit newBid, after which this shim can go.
func ResolveRoute(t Type, p Payload, role Role, isRead bool) Route {
	route := Route{Path: "/", MarkAsRead: !isRead}

	t, p = reclassify(t, p)
	c, known := Canonical(t)
	if !known {
		c = TypeGeneral
	}

	r, ok := ParseRole(string(role))
	if !ok {
		return route
	}

	e, ok := routes[c][r]
	if !ok {
		e, ok = routes[TypeGeneral][r]
		if !ok {
			return route
		}
	}
	route.Path = e.resolve(p)
	return route
}

func (e entry) resolve(p Payload) string {
	if e.Field == "" {
		return e.Path
	}
	v := field(p, e.Field)
	if v == "" {
		return e.Path
	}
	return strings.Replace(e.Template, "{}", url.QueryEscape(v), 1)
}

func reclassify(t Type, p Payload) (Type, Payload) {
	if t != TypeGeneral {
		return t, p
	}
	g, ok := p.(GeneralPayload)
	if !ok || g.BidID == "" || g.MerchantID == "" {
		return t, p
	}
	return TypeNewBid, NewBidPayload{BidID: g.BidID, MerchantID: g.MerchantID, ItemID: g.ItemID}
}
