package access

import (
	"context"
	"strings"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/user"
)

// CanSeeEvent is the event stream filter. Admins see every change; workers
// see project changes and changes to their own records.
func CanSeeEvent(ctx context.Context, e *eventbus.Event) bool {
	u, ok := user.FromContext(ctx)
	if !ok {
		return false
	}
	if u.Role == user.RoleAdmin {
		return true
	}
	switch e.Type {
	case eventbus.EventProjectCreated:
		return true
	case eventbus.EventTaskCreated, eventbus.EventTaskUpdated, eventbus.EventTaskStatusChanged:
		return strings.EqualFold(e.Metadata["assigned_to"], u.Email)
	case eventbus.EventSessionCreated, eventbus.EventVerificationLogged:
		return e.Metadata["user_id"] == u.ID
	case eventbus.EventUserCreated, eventbus.EventUserRoleChanged:
		return e.ResourceID == u.ID
	}
	return false
}
