package notification

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Payload is the type-tagged extra context attached to a notification.
// Each notification Type has at most one payload variant; types that need no
// extra context (system announcements, account updates) carry none.
type Payload interface {
	// Kind returns the JSON tag the variant is stored under.
	Kind() string
}

// ApplicationPayload accompanies application lifecycle notifications.
type ApplicationPayload struct {
	ApplicationID uuid.UUID `json:"application_id"`
	JobTitle      string    `json:"job_title"`
	Status        string    `json:"status,omitempty"`
}

// InterviewPayload accompanies interview lifecycle notifications.
type InterviewPayload struct {
	InterviewID uuid.UUID `json:"interview_id"`
	JobTitle    string    `json:"job_title"`
	ScheduledAt string    `json:"scheduled_at,omitempty"`
}

// MessagePayload accompanies new-message notifications.
type MessagePayload struct {
	ThreadID   uuid.UUID `json:"thread_id"`
	SenderName string    `json:"sender_name"`
}

// JobMatchPayload accompanies job-match notifications.
type JobMatchPayload struct {
	JobID    uuid.UUID `json:"job_id"`
	JobTitle string    `json:"job_title"`
}

// DeadlinePayload accompanies deadline-reminder notifications.
type DeadlinePayload struct {
	JobID    uuid.UUID `json:"job_id"`
	JobTitle string    `json:"job_title"`
	Deadline string    `json:"deadline"`
}

func (ApplicationPayload) Kind() string { return "application" }
func (InterviewPayload) Kind() string   { return "interview" }
func (MessagePayload) Kind() string     { return "message" }
func (JobMatchPayload) Kind() string    { return "job_match" }
func (DeadlinePayload) Kind() string    { return "deadline" }

// Data wraps an optional Payload for storage in a JSONB column and for JSON
// transport. The stored form is an envelope {"kind": ..., "payload": {...}}
// so that decoding does not depend on the surrounding row.
type Data struct {
	Payload Payload
}

type dataEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// IsZero reports whether no payload is attached.
func (d Data) IsZero() bool { return d.Payload == nil }

// Value implements driver.Valuer.
func (d Data) Value() (driver.Value, error) {
	if d.Payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dataEnvelope{Kind: d.Payload.Kind(), Payload: raw})
}

// Scan implements sql.Scanner.
func (d *Data) Scan(value interface{}) error {
	if value == nil {
		d.Payload = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	if len(bytes) == 0 {
		d.Payload = nil
		return nil
	}

	var env dataEnvelope
	if err := json.Unmarshal(bytes, &env); err != nil {
		return err
	}

	payload, err := decodePayload(env)
	if err != nil {
		return err
	}
	d.Payload = payload
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Data) MarshalJSON() ([]byte, error) {
	if d.Payload == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dataEnvelope{Kind: d.Payload.Kind(), Payload: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Data) UnmarshalJSON(bytes []byte) error {
	if len(bytes) == 0 || string(bytes) == "null" {
		d.Payload = nil
		return nil
	}
	var env dataEnvelope
	if err := json.Unmarshal(bytes, &env); err != nil {
		return err
	}
	payload, err := decodePayload(env)
	if err != nil {
		return err
	}
	d.Payload = payload
	return nil
}

func decodePayload(env dataEnvelope) (Payload, error) {
	switch env.Kind {
	case ApplicationPayload{}.Kind():
		var p ApplicationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case InterviewPayload{}.Kind():
		var p InterviewPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case MessagePayload{}.Kind():
		var p MessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobMatchPayload{}.Kind():
		var p JobMatchPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case DeadlinePayload{}.Kind():
		var p DeadlinePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload kind: %q", env.Kind)
	}
}

// DefaultActionURL returns the deep link a client navigates to for a
// notification of the given type and payload. The switch is exhaustive over
// the closed type set.
func DefaultActionURL(typ Type, data Data) string {
	switch typ {
	case ApplicationUpdate:
		if p, ok := data.Payload.(ApplicationPayload); ok {
			return fmt.Sprintf("/applications/%s", p.ApplicationID)
		}
		return "/applications"
	case InterviewUpdate:
		if p, ok := data.Payload.(InterviewPayload); ok {
			return fmt.Sprintf("/interviews/%s", p.InterviewID)
		}
		return "/interviews"
	case NewMessage:
		if p, ok := data.Payload.(MessagePayload); ok {
			return fmt.Sprintf("/messages/%s", p.ThreadID)
		}
		return "/messages"
	case JobMatch:
		if p, ok := data.Payload.(JobMatchPayload); ok {
			return fmt.Sprintf("/jobs/%s", p.JobID)
		}
		return "/jobs"
	case DeadlineReminder:
		if p, ok := data.Payload.(DeadlinePayload); ok {
			return fmt.Sprintf("/jobs/%s", p.JobID)
		}
		return "/jobs"
	case SystemAnnouncement:
		return "/announcements"
	case AccountUpdate:
		return "/settings/account"
	default:
		return ""
	}
}
