package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/agrimarket/services"
	"github.com/yeremiapane/agrimarket/utils"
)

type ChatController struct {
	Chats *services.ChatService
}

func NewChatController(chats *services.ChatService) *ChatController {
	return &ChatController{Chats: chats}
}

func (cc *ChatController) SendMessage(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	var body struct {
		RecipientID uint   `json:"recipient_id" binding:"required"`
		Body        string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	msg, err := cc.Chats.Send(c.Request.Context(), userID, body.RecipientID, body.Body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Message sent", msg)
}

func (cc *ChatController) GetRecentChats(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	chats, err := cc.Chats.RecentChats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Recent chats", chats)
}

func (cc *ChatController) GetConversation(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	otherID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	msgs, err := cc.Chats.Conversation(c.Request.Context(), userID, otherID, queryInt(c, "limit", 100))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Conversation", msgs)
}

// GetPresence -> ?ids=1,2,3
func (cc *ChatController) GetPresence(c *gin.Context) {
	var ids []uint
	for _, part := range strings.Split(c.Query("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("ids must be a comma separated list of user ids"))
			return
		}
		ids = append(ids, uint(id))
	}

	online := cc.Chats.Presence(ids)
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[strconv.FormatUint(uint64(id), 10)] = online[id]
	}
	utils.RespondJSON(c, http.StatusOK, "Presence", out)
}
