package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"htb_guild_backend/internal/middleware"
	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/service"
	"htb_guild_backend/pkg/auth"
	"htb_guild_backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type pointsRoutes struct {
	ls       *service.LedgerService
	rs       *service.RankService
	notifier service.Notifier
	a        *auth.TokenAuth
}

func NewPointsRoutes(handler *gin.RouterGroup, ls *service.LedgerService, rs *service.RankService, notifier service.Notifier, a *auth.TokenAuth, authz *middleware.Authorization) {
	r := &pointsRoutes{ls: ls, rs: rs, notifier: notifier, a: a}
	h := handler.Group("/points")
	h.Use(a.AuthMiddleware())
	{
		h.GET("/balance", r.GetBalance)
		h.GET("/history", r.GetHistory)
		h.GET("/leaderboard", r.GetLeaderboard)
		h.GET("/ranks", r.ListRanks)

		admin := h.Group("/")
		admin.Use(authz.AdminOnly())
		{
			admin.POST("/adjust", r.AdjustPoints)
			admin.POST("/award", r.AwardPoints)
		}
	}
}

func (r *pointsRoutes) GetBalance(c *gin.Context) {
	log := logger.Logger()

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balance, err := r.ls.GetBalance(c.Request.Context(), memberID)
	if err != nil {
		log.Error("failed to get balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member_id":    memberID,
		"total_points": balance,
	})
}

type TransactionResponse struct {
	ID          uuid.UUID `json:"id"`
	Amount      int       `json:"amount"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *pointsRoutes) GetHistory(c *gin.Context) {
	log := logger.Logger()

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	history, err := r.ls.GetHistory(c.Request.Context(), memberID, limit)
	if err != nil {
		log.Error("failed to get points history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get history"})
		return
	}

	out := make([]TransactionResponse, 0, len(history))
	for _, t := range history {
		out = append(out, TransactionResponse{
			ID:          t.ID,
			Amount:      t.Amount,
			Source:      string(t.Source),
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, out)
}

func (r *pointsRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	entries, err := r.rs.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"position":     e.Position,
			"member_id":    e.MemberID,
			"username":     e.Username,
			"display_name": e.DisplayName,
			"total_points": e.TotalPoints,
			"rank_name":    e.RankName,
		})
	}

	c.JSON(http.StatusOK, out)
}

func (r *pointsRoutes) ListRanks(c *gin.Context) {
	log := logger.Logger()

	ranks, err := r.rs.ListRanks(c.Request.Context())
	if err != nil {
		log.Error("failed to list ranks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list ranks"})
		return
	}

	out := make([]gin.H, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, gin.H{
			"id":              rank.ID,
			"name":            rank.Name,
			"display_name":    rank.DisplayName,
			"points_required": rank.PointsRequired,
			"color":           rank.Color,
			"icon":            rank.Icon,
			"order_index":     rank.OrderIndex,
		})
	}

	c.JSON(http.StatusOK, out)
}

type AdjustPointsRequest struct {
	MemberID    uuid.UUID `json:"member_id"`
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
}

// AdjustPoints applies a signed manual correction to a member's ledger and
// recomputes their rank afterwards.
func (r *pointsRoutes) AdjustPoints(c *gin.Context) {
	log := logger.Logger()

	var req AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if req.MemberID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "member_id is required"})
		return
	}

	err := r.ls.Adjust(c.Request.Context(), req.MemberID, req.Amount, req.Description)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Error("failed to adjust points", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to adjust points"})
		return
	}

	if err := r.rs.UpdateMemberRank(c.Request.Context(), req.MemberID); err != nil {
		log.Error("rank update after adjustment failed",
			zap.String("member_id", req.MemberID.String()), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"adjusted": true})
}

type AwardPointsRequest struct {
	MemberID    uuid.UUID `json:"member_id"`
	RuleType    string    `json:"rule_type"`
	Description string    `json:"description"`
}

// AwardPoints credits a member per a configured points rule, e.g. an HTB
// machine own reported by the profile sync. Unknown rules award zero.
func (r *pointsRoutes) AwardPoints(c *gin.Context) {
	log := logger.Logger()

	var req AwardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if req.MemberID == uuid.Nil || req.RuleType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "member_id and rule_type are required"})
		return
	}

	points, err := r.ls.AwardByRule(c.Request.Context(), req.MemberID, req.RuleType, req.Description)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Error("failed to award points", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to award points"})
		return
	}

	if points > 0 {
		if err := r.rs.UpdateMemberRank(c.Request.Context(), req.MemberID); err != nil {
			log.Error("rank update after award failed",
				zap.String("member_id", req.MemberID.String()), zap.Error(err))
		}

		r.notifier.Notify(c.Request.Context(), req.MemberID, model.NotifyHTBAchievement,
			"Achievement rewarded!",
			fmt.Sprintf("+%d points: %s", points, req.Description),
			map[string]interface{}{"rule_type": req.RuleType, "points": points})
	}

	c.JSON(http.StatusOK, gin.H{"awarded": points})
}
