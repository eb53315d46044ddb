package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Type represents the type of notification. The set is closed: every value
// determines which payload variant is attached and which default action URL
// template applies.
type Type string

const (
	// ApplicationUpdate covers the application lifecycle (submitted,
	// shortlisted, rejected, hired).
	ApplicationUpdate Type = "application_update"
	// InterviewUpdate covers the interview lifecycle (scheduled,
	// rescheduled, cancelled).
	InterviewUpdate Type = "interview_update"
	// NewMessage is sent when a message thread receives a new message.
	NewMessage Type = "new_message"
	// JobMatch is sent when a posted job matches a seeker profile.
	JobMatch Type = "job_match"
	// DeadlineReminder is sent before a job application deadline.
	DeadlineReminder Type = "deadline_reminder"
	// SystemAnnouncement is a platform-wide broadcast.
	SystemAnnouncement Type = "system_announcement"
	// AccountUpdate covers profile and account changes.
	AccountUpdate Type = "account_update"
)

// Valid reports whether t is one of the closed set of notification types.
func (t Type) Valid() bool {
	switch t {
	case ApplicationUpdate, InterviewUpdate, NewMessage, JobMatch,
		DeadlineReminder, SystemAnnouncement, AccountUpdate:
		return true
	}
	return false
}

// Notification represents a notification entity. A notification is owned by
// exactly one user; rows are created and mutated only by the repository,
// never by the dispatcher or a client. IsRead transitions one way
// (false to true), and ReadAt is set exactly once at that transition.
type Notification struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Type      Type       `json:"type" gorm:"not null"`
	Title     string     `json:"title" gorm:"not null"`
	Message   string     `json:"message" gorm:"not null"`
	Data      Data       `json:"data,omitempty" gorm:"type:jsonb"`
	ActionURL string     `json:"action_url,omitempty"`
	IsRead    bool       `json:"is_read" gorm:"not null;default:false;index"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null;index"`
}

// BeforeCreate hook to set default values
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}
