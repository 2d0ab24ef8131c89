package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/hub"
	"github.com/yeremiapane/agrimarket/utils"
)

type WSController struct {
	Hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewWSController accepts handshakes from allowedOrigin, or from anywhere
// when it is "*".
func NewWSController(h *hub.Hub, allowedOrigin string) *WSController {
	return &WSController{
		Hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Connect upgrades an authenticated request and streams the user's events
// until the socket closes.
func (wc *WSController) Connect(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{"user_id": userID}).WithError(err).Warn("Websocket upgrade failed")
		return
	}

	hub.NewClient(wc.Hub, ws, userID, role).Serve()
}
