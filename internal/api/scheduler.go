package api

import (
	"net/http"

	"htb_guild_backend/internal/service"
	"htb_guild_backend/pkg/auth"
	"htb_guild_backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type schedulerRoutes struct {
	rs *service.RecurrenceService
}

// NewSchedulerRoutes registers endpoints driven by the external cron
// scheduler. They authenticate with the static service token, not member
// JWTs.
func NewSchedulerRoutes(handler *gin.RouterGroup, rs *service.RecurrenceService, a *auth.TokenAuth) {
	r := &schedulerRoutes{rs: rs}
	h := handler.Group("/internal")
	h.Use(a.ServiceMiddleware())
	{
		h.POST("/reset-quests", r.ResetQuests)
	}
}

// ResetQuests rolls recurring quests into their next period, counting the
// assignments whose current period ended without a completion.
func (r *schedulerRoutes) ResetQuests(c *gin.Context) {
	log := logger.Logger()

	reset, err := r.rs.ResetExpiredQuests(c.Request.Context())
	if err != nil {
		log.Error("failed to reset recurring quests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset quests"})
		return
	}

	log.Info("recurring quest reset completed", zap.Int("reset", reset))
	c.JSON(http.StatusOK, gin.H{"reset": reset})
}
