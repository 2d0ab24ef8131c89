package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/agrimarket/utils"
)

// RequireRoles lets the request through only for the listed roles. It must
// run after AuthMiddleware.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	need := strings.Join(roles, " or ")

	return func(c *gin.Context) {
		userRole, exists := c.Get(ContextRole)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}
		role, _ := userRole.(string)
		if _, ok := allowed[role]; !ok {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access required", need))
			c.Abort()
			return
		}
		c.Next()
	}
}
