package services

import (
	"strconv"

	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
	"gorm.io/datatypes"
)

// newNotification builds an unsaved notification. Priority is copied from
// the display table so feeds can be ordered in SQL.
func newNotification(userID uint, t notifyroute.Type, title, message string, relatedID uint, p notifyroute.Payload) models.Notification {
	return models.Notification{
		UserID:    userID,
		Type:      t,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
		Metadata:  datatypes.JSONMap(notifyroute.Metadata(p)),
		Priority:  notifyroute.Display(t).Priority,
	}
}

func idString(id uint) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}
