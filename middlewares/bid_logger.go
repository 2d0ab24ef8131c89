package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/utils"
)

// BidActionLogger records who attempted which bid action and how it ended.
func BidActionLogger(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := logrus.Fields{
			"action":     action,
			"bid_id":     c.Param("id"),
			"status":     c.Writer.Status(),
			"request_id": c.GetString(ContextRequestID),
		}
		if uid, ok := c.Get(ContextUserID); ok {
			fields["actor_id"] = uid
		}
		if c.Writer.Status() < 400 {
			utils.InfoLogger.WithFields(fields).Info("Bid action completed")
		} else {
			utils.ErrorLogger.WithFields(fields).Warn("Bid action refused")
		}
	}
}
