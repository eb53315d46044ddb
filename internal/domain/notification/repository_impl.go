package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// gormRepository implements the Repository interface on a relational store
type gormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository creates a new notification repository
func NewRepository(db *gorm.DB, logger *logrus.Logger) Repository {
	return &gormRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts one unread notification
func (r *gormRepository) Create(ctx context.Context, notification *Notification) error {
	if !notification.Type.Valid() {
		return ErrInvalidType
	}
	if notification.ActionURL == "" {
		notification.ActionURL = DefaultActionURL(notification.Type, notification.Data)
	}

	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		r.logger.WithError(err).WithField("user_id", notification.UserID).
			Error("Failed to create notification")
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreateBulk inserts one unread notification per user with identical content.
// The rows are written in a single batch insert and are not returned.
func (r *gormRepository) CreateBulk(ctx context.Context, userIDs []uuid.UUID, typ Type, title, message string, data Data) (int64, error) {
	if !typ.Valid() {
		return 0, ErrInvalidType
	}
	if len(userIDs) == 0 {
		return 0, ErrNoRecipients
	}

	now := time.Now().UTC()
	actionURL := DefaultActionURL(typ, data)
	rows := make([]*Notification, len(userIDs))
	for i, userID := range userIDs {
		rows[i] = &Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      typ,
			Title:     title,
			Message:   message,
			Data:      data,
			ActionURL: actionURL,
			CreatedAt: now,
		}
	}

	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		r.logger.WithError(err).WithField("recipients", len(userIDs)).
			Error("Failed to bulk create notifications")
		return 0, fmt.Errorf("bulk create notifications: %w", err)
	}
	return int64(len(rows)), nil
}

// MarkAsRead flips a single notification to read. ReadAt is stamped only on
// the first transition; repeating the call returns the row unchanged.
func (r *gormRepository) MarkAsRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("mark notification read: %w", result.Error)
	}

	// Zero rows means the notification is missing, foreign, or already
	// read; only the first two are errors.
	var row Notification
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &row, nil
}

// MarkAllAsRead flips every unread notification of the user in one statement.
// Concurrent readers observe either the pre-operation count or zero, never a
// value in between.
func (r *gormRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete hard-deletes one notification and returns the deleted row so the
// caller can tell whether it was still unread.
func (r *gormRepository) Delete(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	var row Notification

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Delete(&Notification{}, "id = ? AND user_id = ?", id, userID).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete notification: %w", err)
	}
	return &row, nil
}

// ClearAll deletes every notification of the user
func (r *gormRepository) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&Notification{}, "user_id = ?", userID)
	if result.Error != nil {
		return 0, fmt.Errorf("clear notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountUnread recomputes the unread count from current rows
func (r *gormRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// List returns one page of the user's notifications, newest first
func (r *gormRepository) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int64
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	var rows []*Notification
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return rows, total, nil
}
