package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"townchat/backend/internal/apperr"
)

const identityKey = "identity"

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// token and stores the caller's user id in the context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortWithError(c, apperr.Authentication("authorization token missing", nil))
			return
		}

		identity, err := h.Validator.Validate(header)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(identityKey, identity.UserID)
		c.Next()
	}
}

func identityOf(c *gin.Context) string {
	return c.GetString(identityKey)
}
