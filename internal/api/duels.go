package api

import (
	"errors"
	"net/http"
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

type duelRoutes struct {
	ds *service.DuelService
	a  *auth.TokenAuth
}

func NewDuelRoutes(handler *gin.RouterGroup, ds *service.DuelService, a *auth.TokenAuth, authz *middleware.Authorization) {
	r := &duelRoutes{ds: ds, a: a}
	h := handler.Group("/duels")
	h.Use(a.AuthMiddleware())
	{
		h.POST("/", r.CreateDuel)
		h.GET("/", r.ListDuels)
		h.GET("/:duel_id", r.GetDuel)
		h.POST("/:duel_id/respond", r.RespondToDuel)

		admin := h.Group("/")
		admin.Use(authz.AdminOnly())
		{
			admin.POST("/:duel_id/resolve", r.ResolveDuel)
		}
	}
}

type CreateDuelRequest struct {
	ChallengedID      uuid.UUID `json:"challenged_id"`
	MachineID         int64     `json:"machine_id"`
	MachineName       string    `json:"machine_name"`
	MachineDifficulty string    `json:"machine_difficulty"`
	DurationHours     int       `json:"duration_hours"`
	Stake             int       `json:"stake"`
}

type DuelResponse struct {
	ID                uuid.UUID  `json:"id"`
	ChallengerID      uuid.UUID  `json:"challenger_id"`
	ChallengedID      uuid.UUID  `json:"challenged_id"`
	MachineID         int64      `json:"machine_id"`
	MachineName       string     `json:"machine_name"`
	MachineDifficulty string     `json:"machine_difficulty"`
	Status            string     `json:"status"`
	ChallengerStake   int        `json:"challenger_stake"`
	ChallengedStake   int        `json:"challenged_stake"`
	DurationHours     int        `json:"duration_hours"`
	EndsAt            *time.Time `json:"ends_at,omitempty"`
	WinnerID          *uuid.UUID `json:"winner_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func duelToResponse(d *model.Duel) DuelResponse {
	return DuelResponse{
		ID:                d.ID,
		ChallengerID:      d.ChallengerID,
		ChallengedID:      d.ChallengedID,
		MachineID:         d.MachineID,
		MachineName:       d.MachineName,
		MachineDifficulty: d.MachineDifficulty,
		Status:            string(d.Status),
		ChallengerStake:   d.ChallengerStake,
		ChallengedStake:   d.ChallengedStake,
		DurationHours:     d.DurationHours,
		EndsAt:            d.EndsAt,
		WinnerID:          d.WinnerID,
		CreatedAt:         d.CreatedAt,
	}
}

func (r *duelRoutes) CreateDuel(c *gin.Context) {
	log := logger.Logger()

	challengerID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	duel, err := r.ds.Create(c.Request.Context(), challengerID, req.ChallengedID,
		req.MachineID, req.MachineName, req.MachineDifficulty, req.DurationHours, req.Stake)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		case errors.Is(err, service.ErrSelfChallenge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot challenge yourself"})
		case errors.Is(err, service.ErrMemberNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "challenged member not found"})
		case errors.Is(err, service.ErrInsufficientFunds):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient points for this stake"})
		case errors.Is(err, service.ErrHTBNotLinked):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "both members must have a linked HTB profile"})
		default:
			log.Error("failed to create duel", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create duel"})
		}
		return
	}

	c.JSON(http.StatusCreated, duelToResponse(duel))
}

func (r *duelRoutes) ListDuels(c *gin.Context) {
	log := logger.Logger()

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var status *model.DuelStatus
	if s := c.Query("status"); s != "" {
		st := model.DuelStatus(s)
		status = &st
	}

	duels, err := r.ds.ListForMember(c.Request.Context(), memberID, status)
	if err != nil {
		log.Error("failed to list duels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list duels"})
		return
	}

	out := make([]DuelResponse, 0, len(duels))
	for _, d := range duels {
		out = append(out, duelToResponse(d))
	}

	c.JSON(http.StatusOK, out)
}

func (r *duelRoutes) GetDuel(c *gin.Context) {
	log := logger.Logger()

	duelID, err := uuid.Parse(c.Param("duel_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel_id"})
		return
	}

	duel, err := r.ds.Get(c.Request.Context(), duelID)
	if err != nil {
		if errors.Is(err, service.ErrDuelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "duel not found"})
			return
		}
		log.Error("failed to get duel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get duel"})
		return
	}

	c.JSON(http.StatusOK, duelToResponse(duel))
}

type RespondToDuelRequest struct {
	Accept bool `json:"accept"`
}

func (r *duelRoutes) RespondToDuel(c *gin.Context) {
	log := logger.Logger()

	duelID, err := uuid.Parse(c.Param("duel_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel_id"})
		return
	}

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req RespondToDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err = r.ds.Respond(c.Request.Context(), duelID, memberID, req.Accept)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "duel not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the challenged member can respond"})
		case errors.Is(err, service.ErrDuelNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": "duel is not awaiting a response"})
		case errors.Is(err, service.ErrInsufficientFunds):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient points to match the stake"})
		default:
			log.Error("failed to respond to duel", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to respond to duel"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted": req.Accept})
}

type ResolveDuelRequest struct {
	WinnerID uuid.UUID `json:"winner_id"`
}

func (r *duelRoutes) ResolveDuel(c *gin.Context) {
	log := logger.Logger()

	duelID, err := uuid.Parse(c.Param("duel_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel_id"})
		return
	}

	var req ResolveDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err = r.ds.Resolve(c.Request.Context(), duelID, req.WinnerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "duel not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusBadRequest, gin.H{"error": "winner must be a duel participant"})
		case errors.Is(err, service.ErrDuelNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "duel is not active"})
		default:
			log.Error("failed to resolve duel", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve duel"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolved": true})
}
