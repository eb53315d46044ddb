package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/api/dto"
	"github.com/atefhejazi1/job-kit-sub001/internal/api/middleware"
	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/atefhejazi1/job-kit-sub001/pkg/logger"
	"github.com/atefhejazi1/job-kit-sub001/pkg/security/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandlerConfig carries the request-shaping knobs for the notification API.
type HandlerConfig struct {
	JWTSecret       string
	DefaultPageSize int
	MaxPageSize     int
}

// NotificationHandler handles notification-related requests
type NotificationHandler struct {
	service   notification.Service
	announcer notification.Announcer
	logger    *logger.Logger
	config    HandlerConfig
	upgrader  websocket.Upgrader
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service notification.Service, announcer notification.Announcer, log *logger.Logger, config HandlerConfig) *NotificationHandler {
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 20
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 100
	}
	return &NotificationHandler{
		service:   service,
		announcer: announcer,
		logger:    log,
		config:    config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Origin checks are delegated to the CORS layer
			},
		},
	}
}

// pagination reads page/page_size query parameters, clamped to configured
// bounds.
func (h *NotificationHandler) pagination(c *gin.Context) (int, int) {
	page := 1
	pageSize := h.config.DefaultPageSize

	if pageStr := c.Query("page"); pageStr != "" {
		if pageVal, err := strconv.Atoi(pageStr); err == nil && pageVal > 0 {
			page = pageVal
		}
	}
	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		if pageSizeVal, err := strconv.Atoi(pageSizeStr); err == nil && pageSizeVal > 0 && pageSizeVal <= h.config.MaxPageSize {
			pageSize = pageSizeVal
		}
	}
	return page, pageSize
}

// GetAll returns one page of the authenticated user's notifications, newest
// first, together with the authoritative unread count.
func (h *NotificationHandler) GetAll(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	page, pageSize := h.pagination(c)

	notifications, total, err := h.service.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to get notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}

	unreadCount, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unread notifications"})
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	c.JSON(http.StatusOK, dto.NotificationListResponse{
		Items:       dto.ToDTOs(notifications),
		TotalCount:  total,
		UnreadCount: unreadCount,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		HasMore:     page < totalPages,
	})
}

// CountUnread returns the authoritative unread count.
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	unreadCount, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unread notifications"})
		return
	}

	c.JSON(http.StatusOK, dto.NotificationCountResponse{UnreadCount: unreadCount})
}

// MarkAsRead marks one notification as read. The user scope is enforced in
// the store: a notification owned by someone else reads as not found.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	n, err := h.service.MarkAsRead(c.Request.Context(), userID, notificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		h.logger.Error("Failed to mark notification as read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification as read"})
		return
	}

	c.JSON(http.StatusOK, dto.ToDTO(n))
}

// MarkAllAsRead marks every notification of the authenticated user as read.
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	affected, err := h.service.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to mark all notifications as read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark all notifications as read"})
		return
	}

	c.JSON(http.StatusOK, dto.AffectedResponse{
		Affected: affected,
		Message:  "All notifications marked as read",
	})
}

// Delete removes one notification of the authenticated user.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, notificationID); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		h.logger.Error("Failed to delete notification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

// ClearAll removes every notification of the authenticated user.
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	deleted, err := h.service.ClearAll(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to clear notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear notifications"})
		return
	}

	c.JSON(http.StatusOK, dto.AffectedResponse{
		Affected: deleted,
		Message:  "All notifications cleared",
	})
}

// Create creates a notification for a user. Restricted to service callers by
// the admin role guard on the route.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	typ := notification.Type(req.Type)
	if !typ.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification type"})
		return
	}

	n, err := h.service.Create(c.Request.Context(), req.UserID, typ, req.Title, req.Message, req.Data, req.ActionURL)
	if err != nil {
		h.logger.Error("Failed to create notification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToDTO(n))
}

// Announce enqueues a system announcement for a set of users. The creation
// itself happens asynchronously on the announcement consumer.
func (h *NotificationHandler) Announce(c *gin.Context) {
	var req dto.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.announcer.Announce(c.Request.Context(), req.UserIDs, req.Title, req.Message); err != nil {
		if errors.Is(err, notification.ErrNoRecipients) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "At least one recipient is required"})
			return
		}
		h.logger.Error("Failed to enqueue announcement", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue announcement"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "Announcement accepted",
		"recipients": len(req.UserIDs),
	})
}

// wsCommand is an inbound command frame sent by a connected client.
type wsCommand struct {
	Command string `json:"command"`
	ID      string `json:"id,omitempty"`
}

// WebSocketHandler handles WebSocket connections for real-time notifications
func (h *NotificationHandler) WebSocketHandler(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)

	// Browsers cannot set headers on WebSocket dials, so the token may also
	// arrive as a query parameter.
	if !exists {
		tokenParam := c.Query("token")
		if tokenParam == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := auth.ValidateToken(tokenParam, h.config.JWTSecret)
		if err != nil {
			h.logger.Error("WebSocket token validation failed", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		userID = claims.UserID
	}

	h.logger.Info("WebSocket connection attempt",
		zap.String("user_id", userID.String()),
		zap.String("remote_addr", c.Request.RemoteAddr))

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade to WebSocket",
			zap.Error(err),
			zap.String("user_id", userID.String()))
		return
	}
	middleware.PushConnectionOpened()
	defer func() {
		ws.Close()
		middleware.PushConnectionClosed()
		h.logger.Info("WebSocket connection closed", zap.String("user_id", userID.String()))
	}()

	ws.SetReadLimit(1024 * 10)
	ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	events, cancel := h.service.Subscribe(userID)
	defer cancel()

	// Push the authoritative count immediately so a freshly connected client
	// can render its badge before the first list fetch completes.
	unreadCount, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications",
			zap.Error(err),
			zap.String("user_id", userID.String()))
	} else {
		if writeErr := ws.WriteJSON(notification.CountUpdateEvent(unreadCount)); writeErr != nil {
			h.logger.Error("Failed to send initial count", zap.Error(writeErr))
			return
		}
	}

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	done := make(chan struct{})

	// Inbound frames carry read receipts; everything else is ignored.
	go func() {
		defer close(done)
		for {
			messageType, message, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure) {
					h.logger.Error("WebSocket read error",
						zap.Error(err),
						zap.String("user_id", userID.String()))
				}
				return
			}

			if messageType != websocket.TextMessage || len(message) == 0 {
				continue
			}

			var cmd wsCommand
			if jsonErr := json.Unmarshal(message, &cmd); jsonErr != nil {
				continue
			}

			switch cmd.Command {
			case "mark_read":
				if notifID, parseErr := uuid.Parse(cmd.ID); parseErr == nil {
					if _, err := h.service.MarkAsRead(c.Request.Context(), userID, notifID); err != nil &&
						!errors.Is(err, notification.ErrNotFound) {
						h.logger.Error("WebSocket mark_read failed", zap.Error(err))
					}
				}
			case "mark_all_read":
				if _, err := h.service.MarkAllAsRead(c.Request.Context(), userID); err != nil {
					h.logger.Error("WebSocket mark_all_read failed", zap.Error(err))
				}
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("user_id", userID.String()))
				return
			}
			middleware.PushEventDelivered(string(event.Kind))

		case <-pingTicker.C:
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Error("WebSocket ping error",
					zap.Error(err),
					zap.String("user_id", userID.String()))
				return
			}

		case <-done:
			return
		}
	}
}
