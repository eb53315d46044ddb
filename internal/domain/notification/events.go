package notification

import "github.com/google/uuid"

// EventKind identifies a push event flowing from the dispatcher to a
// connected client. Push events are hints: the durable store remains the
// system of record and clients resynchronize from it.
type EventKind string

const (
	// EventNewNotification carries a freshly created notification.
	EventNewNotification EventKind = "new-notification"
	// EventCountUpdate carries the authoritative unread count. It always
	// overwrites any locally accumulated estimate on the client.
	EventCountUpdate EventKind = "count-update"
	// EventMarkedRead signals that a single notification became read.
	EventMarkedRead EventKind = "notification-marked-read"
	// EventAllRead signals that every notification of the user became read.
	EventAllRead EventKind = "all-notifications-read"
)

// Event is the wire unit pushed to a user's connected clients.
type Event struct {
	Kind           EventKind     `json:"type"`
	Notification   *Notification `json:"notification,omitempty"`
	NotificationID uuid.UUID     `json:"notification_id"`
	UnreadCount    int64         `json:"unread_count"`
}

// NewNotificationEvent builds a new-notification event.
func NewNotificationEvent(n *Notification) Event {
	return Event{Kind: EventNewNotification, Notification: n, NotificationID: n.ID}
}

// CountUpdateEvent builds a count-update event with the authoritative count.
func CountUpdateEvent(count int64) Event {
	return Event{Kind: EventCountUpdate, UnreadCount: count}
}

// MarkedReadEvent builds a notification-marked-read event.
func MarkedReadEvent(id uuid.UUID) Event {
	return Event{Kind: EventMarkedRead, NotificationID: id}
}

// AllReadEvent builds an all-notifications-read event.
func AllReadEvent() Event {
	return Event{Kind: EventAllRead}
}
