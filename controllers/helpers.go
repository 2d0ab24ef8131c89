package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/middlewares"
	"github.com/yeremiapane/agrimarket/services"
	"github.com/yeremiapane/agrimarket/utils"
)

// respondServiceError maps the service error taxonomy to HTTP statuses.
// Unexpected errors are logged and hidden from the caller.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case services.IsValidation(err):
		utils.RespondError(c, http.StatusBadRequest, err)
	case services.IsAuthorization(err):
		utils.RespondError(c, http.StatusForbidden, err)
	case services.IsInvalidState(err):
		utils.RespondError(c, http.StatusConflict, err)
	case services.IsNotFound(err):
		utils.RespondError(c, http.StatusNotFound, err)
	default:
		utils.ErrorLogger.WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(middlewares.ContextRequestID),
		}).WithError(err).Error("Unhandled service error")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

// currentUser reads what AuthMiddleware stored on the context.
func currentUser(c *gin.Context) (uint, string, bool) {
	raw, exists := c.Get(middlewares.ContextUserID)
	if !exists {
		return 0, "", false
	}
	userID, ok := raw.(uint)
	if !ok || userID == 0 {
		return 0, "", false
	}
	return userID, c.GetString(middlewares.ContextRole), true
}

// mustUser writes 401 and returns false when the request is not
// authenticated.
func mustUser(c *gin.Context) (uint, string, bool) {
	userID, role, ok := currentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
	}
	return userID, role, ok
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid "+name))
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func queryUint(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
