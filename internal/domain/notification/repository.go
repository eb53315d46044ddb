package notification

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for notification data access. Every
// operation is scoped to the owning user: acting on another user's row
// behaves exactly like acting on a missing one.
type Repository interface {
	// Create inserts one unread notification.
	Create(ctx context.Context, notification *Notification) error

	// CreateBulk inserts one unread notification per user with identical
	// content and returns the number of rows inserted. It deliberately does
	// not return the created rows; bulk creates are pushed as count
	// updates only.
	CreateBulk(ctx context.Context, userIDs []uuid.UUID, typ Type, title, message string, data Data) (int64, error)

	// MarkAsRead flips a single notification to read and stamps ReadAt.
	// Marking an already-read notification is a no-op, not an error; the
	// row is returned unchanged.
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error)

	// MarkAllAsRead flips every unread notification of the user in one
	// atomic statement and returns the number of rows affected.
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete hard-deletes one notification and returns the deleted row.
	Delete(ctx context.Context, userID, id uuid.UUID) (*Notification, error)

	// ClearAll deletes every notification of the user and returns the
	// number of rows deleted.
	ClearAll(ctx context.Context, userID uuid.UUID) (int64, error)

	// CountUnread returns the authoritative unread count, recomputed from
	// current rows on every call.
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)

	// List returns one page of the user's notifications, newest first,
	// along with the total row count.
	List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*Notification, int64, error)
}
