package access

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/identity"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type View string

const (
	ViewUserAdmin       View = "user_admin"
	ViewProjectAdmin    View = "project_admin"
	ViewTaskAdmin       View = "task_admin"
	ViewVerificationLog View = "verification_log"
	ViewAllSessions     View = "all_sessions"

	ViewOwnTasks    View = "own_tasks"
	ViewOwnSessions View = "own_sessions"
	ViewSuggestion  View = "suggestion"
)

var (
	adminViews  = []View{ViewUserAdmin, ViewProjectAdmin, ViewTaskAdmin, ViewVerificationLog, ViewAllSessions}
	workerViews = []View{ViewOwnTasks, ViewOwnSessions, ViewSuggestion}
)

// Views is the surface a role may see. Anything other than admin gets the
// worker surface.
func Views(role user.Role) []View {
	if role == user.RoleAdmin {
		return append([]View(nil), adminViews...)
	}
	return append([]View(nil), workerViews...)
}

func Allows(role user.Role, view View) bool {
	for _, v := range Views(role) {
		if v == view {
			return true
		}
	}
	return false
}

// Composer resolves the role of an identity from its user record, creating
// the record on first sight. Records are cached per identity until a role
// change goes through ChangeRole.
type Composer struct {
	users          user.Repository
	bus            *eventbus.Bus
	bootstrapAdmin string
	now            func() time.Time

	mu    sync.Mutex
	cache map[string]*user.User
}

func NewComposer(users user.Repository, bus *eventbus.Bus, bootstrapAdminEmail string) *Composer {
	return &Composer{
		users:          users,
		bus:            bus,
		bootstrapAdmin: strings.ToLower(strings.TrimSpace(bootstrapAdminEmail)),
		now:            time.Now,
		cache:          make(map[string]*user.User),
	}
}

func (c *Composer) Resolve(ctx context.Context, id identity.Identity) (*user.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u, ok := c.cache[id.ID]; ok {
		return u, nil
	}
	u, err := c.users.Get(ctx, id.ID)
	if cerr.IsCode(err, cerr.NotFound) {
		u, err = c.create(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	c.cache[id.ID] = u
	return u, nil
}

func (c *Composer) create(ctx context.Context, id identity.Identity) (*user.User, error) {
	role := user.RoleWorker
	if c.bootstrapAdmin != "" && strings.EqualFold(id.Email, c.bootstrapAdmin) {
		role = user.RoleAdmin
	}
	now := c.now()
	u := &user.User{
		ID:        id.ID,
		Email:     id.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if c.bus != nil {
		c.bus.PublishNew(eventbus.EventUserCreated, u.ID, map[string]string{"role": string(u.Role)})
	}
	return u, nil
}

// ChangeRole sets the role of another user. Admins cannot change their own
// role.
func (c *Composer) ChangeRole(ctx context.Context, actor *user.User, targetID string, role user.Role) (*user.User, error) {
	if !role.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, "unknown role", nil)
	}
	if actor.Role != user.RoleAdmin {
		return nil, cerr.NewError(cerr.PermissionDenied, "only admins can change roles", nil)
	}
	if actor.ID == targetID {
		return nil, cerr.NewError(cerr.FailedPrecondition, "admins cannot change their own role", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := c.users.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	u.Role = role
	u.UpdatedAt = c.now()
	if err := c.users.Update(ctx, u); err != nil {
		return nil, err
	}
	delete(c.cache, targetID)
	if c.bus != nil {
		c.bus.PublishNew(eventbus.EventUserRoleChanged, u.ID, map[string]string{"role": string(role)})
	}
	return u, nil
}
