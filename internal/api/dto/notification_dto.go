package dto

import (
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/google/uuid"
)

// NotificationDTO represents a notification data transfer object
type NotificationDTO struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      notification.Data `json:"data,omitempty"`
	ActionURL string            `json:"action_url,omitempty"`
	IsRead    bool              `json:"is_read"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// CreateNotificationRequest represents a request to create a notification
// (system or service use)
type CreateNotificationRequest struct {
	UserID    uuid.UUID         `json:"user_id" binding:"required"`
	Type      string            `json:"type" binding:"required"`
	Title     string            `json:"title" binding:"required"`
	Message   string            `json:"message" binding:"required"`
	Data      notification.Data `json:"data,omitempty"`
	ActionURL string            `json:"action_url,omitempty"`
}

// AnnouncementRequest represents a request to broadcast a system
// announcement to a set of users
type AnnouncementRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required,min=1"`
	Title   string      `json:"title" binding:"required"`
	Message string      `json:"message" binding:"required"`
}

// NotificationListResponse represents a paginated response of notifications
type NotificationListResponse struct {
	Items       []NotificationDTO `json:"items"`
	TotalCount  int64             `json:"total_count"`
	UnreadCount int64             `json:"unread_count"`
	Page        int               `json:"page"`
	PageSize    int               `json:"page_size"`
	TotalPages  int               `json:"total_pages"`
	HasMore     bool              `json:"has_more"`
}

// NotificationCountResponse represents the unread count of notifications
type NotificationCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// AffectedResponse reports how many rows a bulk mutation touched
type AffectedResponse struct {
	Affected int64  `json:"affected"`
	Message  string `json:"message,omitempty"`
}

// ToDTO converts a domain notification model to a DTO
func ToDTO(n *notification.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		ActionURL: n.ActionURL,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// ToDTOs converts a slice of domain notification models to DTOs
func ToDTOs(notifications []*notification.Notification) []NotificationDTO {
	dtos := make([]NotificationDTO, len(notifications))
	for i, n := range notifications {
		dtos[i] = ToDTO(n)
	}
	return dtos
}

// ToModel converts a DTO back to a domain notification model
func (dto NotificationDTO) ToModel() notification.Notification {
	return notification.Notification{
		ID:        dto.ID,
		UserID:    dto.UserID,
		Type:      notification.Type(dto.Type),
		Title:     dto.Title,
		Message:   dto.Message,
		Data:      dto.Data,
		ActionURL: dto.ActionURL,
		IsRead:    dto.IsRead,
		ReadAt:    dto.ReadAt,
		CreatedAt: dto.CreatedAt,
	}
}
