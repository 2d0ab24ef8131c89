package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/agrimarket/notifyroute"
	"github.com/yeremiapane/agrimarket/services"
	"github.com/yeremiapane/agrimarket/utils"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// GetNotifications -> the caller's feed, ?unread=true for unread only.
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	page, perPage := services.NormalizePage(queryInt(c, "page", 1), queryInt(c, "per_page", 20))
	feed, total, err := nc.Notifications.List(c.Request.Context(), userID, page, perPage, c.Query("unread") == "true")
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSONWithMeta(c, http.StatusOK, "Notifications", feed, utils.NewMeta(page, perPage, total))
}

func (nc *NotificationController) GetUnreadCount(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	count, err := nc.Notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unread count", gin.H{"unread": count})
}

func (nc *NotificationController) MarkAsRead(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := nc.Notifications.MarkAsRead(c.Request.Context(), id, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", gin.H{"notification_id": id})
}

func (nc *NotificationController) MarkAllAsRead(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	updated, err := nc.Notifications.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": updated})
}

// OpenNotification -> where the client should navigate for this
// notification; marks it read on first open.
func (nc *NotificationController) OpenNotification(c *gin.Context) {
	userID, role, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	route, err := nc.Notifications.Open(c.Request.Context(), id, userID, role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification route", route)
}

// ResolveRoute -> route and display props for a notification the client
// already holds. Role defaults to the caller's.
func (nc *NotificationController) ResolveRoute(c *gin.Context) {
	_, role, ok := mustUser(c)
	if !ok {
		return
	}
	var body struct {
		Type     string                 `json:"type" binding:"required"`
		Metadata map[string]interface{} `json:"metadata"`
		Role     string                 `json:"role"`
		IsRead   bool                   `json:"is_read"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if body.Role != "" {
		role = body.Role
	}
	route, display := nc.Notifications.Resolve(notifyroute.Type(body.Type), body.Metadata, role, body.IsRead)
	utils.RespondJSON(c, http.StatusOK, "Notification route", gin.H{
		"route":   route,
		"display": display,
	})
}
