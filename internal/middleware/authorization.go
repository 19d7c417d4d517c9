package middleware

import (
	"net/http"

	"htb_guild_backend/internal/service"
	"htb_guild_backend/pkg/auth"
	"htb_guild_backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type Authorization struct {
	identity service.IdentityProvider
}

func NewAuthorization(identity service.IdentityProvider) *Authorization {
	return &Authorization{
		identity: identity,
	}
}

// AdminOnly checks the admin flag against the members table rather than
// trusting the token claim, so revoked admins are rejected immediately.
func (a *Authorization) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		memberID, ok := auth.MemberID(c)
		if !ok {
			log.Error("member id not found in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		isAdmin, err := a.identity.IsAdmin(c.Request.Context(), memberID)
		if err != nil {
			log.Error("failed to check admin status", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if !isAdmin {
			log.Info("unauthorized access attempt to admin endpoint",
				zap.String("member_id", memberID.String()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Next()
	}
}
