package services

import (
	"github.com/yeremiapane/agrimarket/hub"
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
)

// Dispatcher pushes an event to a user's live connections without waiting
// for delivery. *hub.Hub satisfies it.
type Dispatcher interface {
	Dispatch(userID uint, event string, data interface{})
}

// NopDispatcher drops every event.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(uint, string, interface{}) {}

func (NopDispatcher) Broadcast(string, string, interface{}) {}

// Broadcaster pushes an event to every connected user with a role, or to
// everyone when role is empty. *hub.Hub satisfies it.
type Broadcaster interface {
	Broadcast(role, event string, data interface{})
}

// Event names the services push, as the hub defines them.
const (
	EventNotification  = hub.EventNotification
	EventChatMessage   = hub.EventChatMessage
	EventBidUpdate     = hub.EventBidUpdate
	EventBookingUpdate = hub.EventBookingUpdate
	EventProductListed = hub.EventProductListed
)

// NotificationView is what clients receive for a notification, pushed or
// listed.
type NotificationView struct {
	models.Notification
	Display notifyroute.DisplayProps `json:"display"`
}

func NewNotificationView(n models.Notification) NotificationView {
	return NotificationView{Notification: n, Display: notifyroute.Display(n.Type)}
}

// pushNotifications sends each notification to its recipient in slice order.
func pushNotifications(d Dispatcher, notes []models.Notification) {
	for _, n := range notes {
		d.Dispatch(n.UserID, EventNotification, NewNotificationView(n))
	}
}
