package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/service"
	"htb_guild_backend/pkg/auth"
	"htb_guild_backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotificationHub pushes outbox rows to connected members over websocket.
// It implements service.Emitter; members without an open connection fall
// back to the wrapped emitter so dispatch still completes.
type NotificationHub struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]map[*websocket.Conn]struct{}
	fallback service.Emitter
}

func NewNotificationHub(fallback service.Emitter) *NotificationHub {
	return &NotificationHub{
		conns:    make(map[uuid.UUID]map[*websocket.Conn]struct{}),
		fallback: fallback,
	}
}

type notificationEvent struct {
	ID      uuid.UUID              `json:"id"`
	Type    model.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    interface{}            `json:"data,omitempty"`
}

func (h *NotificationHub) Emit(ctx context.Context, n *model.Notification) error {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[n.MemberID]))
	for conn := range h.conns[n.MemberID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return h.fallback.Emit(ctx, n)
	}

	event := notificationEvent{
		ID:      n.ID,
		Type:    n.Type,
		Title:   n.Title,
		Message: n.Message,
	}
	if len(n.Data) > 0 {
		event.Data = n.Data
	}

	delivered := false
	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			h.unregister(n.MemberID, conn)
			continue
		}
		delivered = true
	}
	if !delivered {
		return h.fallback.Emit(ctx, n)
	}
	return nil
}

func (h *NotificationHub) register(memberID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[memberID] == nil {
		h.conns[memberID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[memberID][conn] = struct{}{}
}

func (h *NotificationHub) unregister(memberID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[memberID], conn)
	if len(h.conns[memberID]) == 0 {
		delete(h.conns, memberID)
	}
	conn.Close()
}

type notificationRoutes struct {
	ns  *service.NotificationService
	hub *NotificationHub
	a   *auth.TokenAuth
}

func NewNotificationRoutes(handler *gin.RouterGroup, ns *service.NotificationService, hub *NotificationHub, a *auth.TokenAuth) {
	r := &notificationRoutes{ns: ns, hub: hub, a: a}
	h := handler.Group("/notifications")
	h.Use(a.AuthMiddleware())
	{
		h.GET("/", r.ListNotifications)
		h.GET("/unread-count", r.UnreadCount)
		h.GET("/stream", r.Stream)
		h.PATCH("/read-all", r.MarkAllRead)
		h.PATCH("/:notification_id/read", r.MarkRead)
	}
}

func (r *notificationRoutes) ListNotifications(c *gin.Context) {
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
	unreadOnly := c.Query("unread") == "true"

	notifications, err := r.ns.List(c.Request.Context(), memberID, limit, unreadOnly)
	if err != nil {
		log.Error("failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}

	out := make([]gin.H, 0, len(notifications))
	for _, n := range notifications {
		item := gin.H{
			"id":         n.ID,
			"type":       n.Type,
			"title":      n.Title,
			"message":    n.Message,
			"read":       n.Read,
			"created_at": n.CreatedAt,
		}
		if len(n.Data) > 0 {
			item["data"] = n.Data
		}
		out = append(out, item)
	}

	c.JSON(http.StatusOK, out)
}

func (r *notificationRoutes) UnreadCount(c *gin.Context) {
	log := logger.Logger()

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	count, err := r.ns.UnreadCount(c.Request.Context(), memberID)
	if err != nil {
		log.Error("failed to count unread notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (r *notificationRoutes) MarkRead(c *gin.Context) {
	log := logger.Logger()

	notificationID, err := uuid.Parse(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification_id"})
		return
	}

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := r.ns.MarkRead(c.Request.Context(), notificationID, memberID); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		log.Error("failed to mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (r *notificationRoutes) MarkAllRead(c *gin.Context) {
	log := logger.Logger()

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := r.ns.MarkAllRead(c.Request.Context(), memberID); err != nil {
		log.Error("failed to mark all notifications read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

// Stream upgrades to a websocket that receives notification events as the
// dispatcher processes the outbox. The read loop only watches for close.
func (r *notificationRoutes) Stream(c *gin.Context) {
	log := logger.Logger()

	memberID, ok := auth.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	r.hub.register(memberID, conn)

	go func() {
		defer r.hub.unregister(memberID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
