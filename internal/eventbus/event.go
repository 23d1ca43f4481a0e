package eventbus

import "time"

type EventType string

const (
	EventProjectCreated     EventType = "project.created"
	EventTaskCreated        EventType = "task.created"
	EventTaskUpdated        EventType = "task.updated"
	EventTaskStatusChanged  EventType = "task.status_changed"
	EventUserCreated        EventType = "user.created"
	EventUserRoleChanged    EventType = "user.role_changed"
	EventSessionCreated     EventType = "session.created"
	EventVerificationLogged EventType = "verification.created"
)

// Event is a store change notification. It carries identifiers only;
// consumers refetch the resource they care about.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	ResourceID string            `json:"resource_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
