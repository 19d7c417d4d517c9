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

type questRoutes struct {
	qs *service.QuestService
	a  *auth.TokenAuth
}

func NewQuestRoutes(handler *gin.RouterGroup, qs *service.QuestService, a *auth.TokenAuth, authz *middleware.Authorization) {
	r := &questRoutes{qs: qs, a: a}
	h := handler.Group("/quests")
	h.Use(a.AuthMiddleware())
	{
		h.GET("/", r.ListQuests)
		h.GET("/me", r.MyQuests)
		h.GET("/:quest_id", r.GetQuest)
		h.POST("/:quest_id/submit", r.SubmitQuest)
		h.GET("/:quest_id/replayable", r.Replayable)

		admin := h.Group("/")
		admin.Use(authz.AdminOnly())
		{
			admin.POST("/", r.CreateQuest)
			admin.POST("/:quest_id/assign", r.AssignQuest)
			admin.POST("/assignments/:member_quest_id/validate", r.ValidateSubmission)
		}
	}
}

type CreateQuestRequest struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	PointsReward       int        `json:"points_reward"`
	Difficulty         string     `json:"difficulty"`
	CategoryID         *uuid.UUID `json:"category_id"`
	QuestType          string     `json:"quest_type"`
	Deadline           *time.Time `json:"deadline"`
	PenaltyPercentage  int        `json:"penalty_percentage"`
	RecurrenceType     string     `json:"recurrence_type"`
	RecurrenceResetDay *int       `json:"recurrence_reset_day"`
}

type QuestResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	PointsReward       int        `json:"points_reward"`
	Difficulty         string     `json:"difficulty"`
	CategoryID         *uuid.UUID `json:"category_id,omitempty"`
	QuestType          string     `json:"quest_type"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	PenaltyPercentage  int        `json:"penalty_percentage"`
	RecurrenceType     string     `json:"recurrence_type"`
	RecurrenceResetDay *int       `json:"recurrence_reset_day,omitempty"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
}

func questToResponse(q *model.Quest) QuestResponse {
	return QuestResponse{
		ID:                 q.ID,
		Title:              q.Title,
		Description:        q.Description,
		PointsReward:       q.PointsReward,
		Difficulty:         string(q.Difficulty),
		CategoryID:         q.CategoryID,
		QuestType:          string(q.QuestType),
		Deadline:           q.Deadline,
		PenaltyPercentage:  q.PenaltyPercentage,
		RecurrenceType:     string(q.RecurrenceType),
		RecurrenceResetDay: q.RecurrenceResetDay,
		Active:             q.Active,
		CreatedAt:          q.CreatedAt,
	}
}

func (r *questRoutes) CreateQuest(c *gin.Context) {
	log := logger.Logger()

	var req CreateQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	creatorID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recurrence := req.RecurrenceType
	if recurrence == "" {
		recurrence = string(model.RecurrenceNone)
	}

	q := &model.Quest{
		Title:              req.Title,
		Description:        req.Description,
		PointsReward:       req.PointsReward,
		Difficulty:         model.QuestDifficulty(req.Difficulty),
		CategoryID:         req.CategoryID,
		QuestType:          model.QuestType(req.QuestType),
		Deadline:           req.Deadline,
		PenaltyPercentage:  req.PenaltyPercentage,
		RecurrenceType:     model.RecurrenceType(recurrence),
		RecurrenceResetDay: req.RecurrenceResetDay,
		CreatedBy:          creatorID,
	}

	if err := r.qs.CreateQuest(c.Request.Context(), q); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Error("failed to create quest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create quest"})
		return
	}

	c.JSON(http.StatusCreated, questToResponse(q))
}

func (r *questRoutes) ListQuests(c *gin.Context) {
	log := logger.Logger()

	activeOnly := c.Query("include_inactive") != "true"

	quests, err := r.qs.ListQuests(c.Request.Context(), activeOnly)
	if err != nil {
		log.Error("failed to list quests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list quests"})
		return
	}

	out := make([]QuestResponse, 0, len(quests))
	for _, q := range quests {
		out = append(out, questToResponse(q))
	}

	c.JSON(http.StatusOK, out)
}

func (r *questRoutes) GetQuest(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	quest, err := r.qs.GetQuest(c.Request.Context(), questID)
	if err != nil {
		if errors.Is(err, service.ErrQuestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
			return
		}
		log.Error("failed to get quest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get quest"})
		return
	}

	c.JSON(http.StatusOK, questToResponse(quest))
}

type MemberQuestResponse struct {
	ID           uuid.UUID  `json:"id"`
	QuestID      uuid.UUID  `json:"quest_id"`
	QuestTitle   string     `json:"quest_title"`
	PointsReward int        `json:"points_reward"`
	Difficulty   string     `json:"difficulty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Status       string     `json:"status"`
	AssignedAt   time.Time  `json:"assigned_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Feedback     *string    `json:"feedback,omitempty"`
	PointsEarned *int       `json:"points_earned,omitempty"`
	WasLate      bool       `json:"was_late"`
}

func (r *questRoutes) MyQuests(c *gin.Context) {
	log := logger.Logger()

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var status *model.MemberQuestStatus
	if s := c.Query("status"); s != "" {
		st := model.MemberQuestStatus(s)
		status = &st
	}

	views, err := r.qs.QuestsForMember(c.Request.Context(), memberID, status)
	if err != nil {
		log.Error("failed to list member quests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list quests"})
		return
	}

	out := make([]MemberQuestResponse, 0, len(views))
	for _, v := range views {
		out = append(out, MemberQuestResponse{
			ID:           v.ID,
			QuestID:      v.QuestID,
			QuestTitle:   v.QuestTitle,
			PointsReward: v.PointsReward,
			Difficulty:   string(v.Difficulty),
			Deadline:     v.Deadline,
			Status:       string(v.Status),
			AssignedAt:   v.AssignedAt,
			StartedAt:    v.StartedAt,
			CompletedAt:  v.CompletedAt,
			Feedback:     v.Feedback,
			PointsEarned: v.PointsEarned,
			WasLate:      v.WasLate,
		})
	}

	c.JSON(http.StatusOK, out)
}

type AssignQuestRequest struct {
	MemberIDs   []uuid.UUID `json:"member_ids"`
	AssignToAll bool        `json:"assign_to_all"`
}

func (r *questRoutes) AssignQuest(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	var req AssignQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	assigned, err := r.qs.Assign(c.Request.Context(), questID, req.MemberIDs, req.AssignToAll)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		case errors.Is(err, service.ErrQuestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		default:
			log.Error("failed to assign quest", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign quest"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"assigned": assigned})
}

type SubmitQuestRequest struct {
	SubmissionData map[string]interface{} `json:"submission_data"`
}

func (r *questRoutes) SubmitQuest(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req SubmitQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err = r.qs.Submit(c.Request.Context(), questID, memberID, req.SubmissionData)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest is not assigned to you"})
		case errors.Is(err, service.ErrNotSubmittable):
			c.JSON(http.StatusConflict, gin.H{"error": "quest is no longer open for submission"})
		default:
			log.Error("failed to submit quest", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit quest"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"submitted": true})
}

type ValidateSubmissionRequest struct {
	Action   string `json:"action"`
	Feedback string `json:"feedback"`
}

func (r *questRoutes) ValidateSubmission(c *gin.Context) {
	log := logger.Logger()

	memberQuestID, err := uuid.Parse(c.Param("member_quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member_quest_id"})
		return
	}

	validatorID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req ValidateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if req.Action != "approve" && req.Action != "reject" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be approve or reject"})
		return
	}

	err = r.qs.Validate(c.Request.Context(), memberQuestID, req.Action == "approve", validatorID, req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		case errors.Is(err, service.ErrAlreadyValidated):
			// A competing validation already landed. Not an error for the
			// caller, but the response says no new effect happened.
			log.Info("validation skipped, already settled",
				zap.String("member_quest_id", memberQuestID.String()))
			c.JSON(http.StatusOK, gin.H{"applied": false})
		default:
			log.Error("failed to validate submission", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate submission"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"applied": true})
}

func (r *questRoutes) Replayable(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	replayable, err := r.qs.CanReplay(c.Request.Context(), questID, memberID)
	if err != nil {
		log.Error("failed to check replayability", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check replayability"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"replayable": replayable})
}
