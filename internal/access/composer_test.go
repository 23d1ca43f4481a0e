package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/identity"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/internal/user/repositoryimpl"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

type countingRepo struct {
	user.Repository
	gets atomic.Int32
}

func (r *countingRepo) Get(ctx context.Context, id string) (*user.User, error) {
	r.gets.Add(1)
	return r.Repository.Get(ctx, id)
}

func newComposer(t *testing.T, admin string) (*Composer, *countingRepo, *eventbus.Bus) {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := &countingRepo{Repository: repositoryimpl.NewYAMLRepository(s)}
	bus := eventbus.New()
	return NewComposer(repo, bus, admin), repo, bus
}

func TestViews(t *testing.T) {
	assert.Equal(t, []View{ViewUserAdmin, ViewProjectAdmin, ViewTaskAdmin, ViewVerificationLog, ViewAllSessions}, Views(user.RoleAdmin))
	assert.Equal(t, []View{ViewOwnTasks, ViewOwnSessions, ViewSuggestion}, Views(user.RoleWorker))
	assert.Equal(t, Views(user.RoleWorker), Views(user.Role("")))

	assert.True(t, Allows(user.RoleAdmin, ViewAllSessions))
	assert.False(t, Allows(user.RoleWorker, ViewAllSessions))
	assert.False(t, Allows(user.RoleAdmin, ViewSuggestion))
	assert.True(t, Allows(user.RoleWorker, ViewSuggestion))
}

func TestComposer_ResolveCreatesAndCaches(t *testing.T) {
	ctx := context.Background()
	c, repo, bus := newComposer(t, "Boss@example.com")
	subID, events := bus.Subscribe(8)
	defer bus.Unsubscribe(subID)

	w, err := c.Resolve(ctx, identity.Identity{ID: "W1", Email: "ann@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleWorker, w.Role)

	a, err := c.Resolve(ctx, identity.Identity{ID: "A1", Email: "boss@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, a.Role)

	for range 3 {
		_, err := c.Resolve(ctx, identity.Identity{ID: "W1", Email: "ann@example.com"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), repo.gets.Load())

	ev := <-events
	assert.Equal(t, eventbus.EventUserCreated, ev.Type)
}

func TestComposer_BootstrapOnlyAtCreation(t *testing.T) {
	ctx := context.Background()
	c, repo, _ := newComposer(t, "")
	_, err := c.Resolve(ctx, identity.Identity{ID: "U1", Email: "boss@example.com"})
	require.NoError(t, err)

	// A later configuration naming the same email does not promote the existing record.
	c2 := NewComposer(repo, nil, "boss@example.com")
	u, err := c2.Resolve(ctx, identity.Identity{ID: "U1", Email: "boss@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleWorker, u.Role)
}

func TestComposer_ChangeRole(t *testing.T) {
	ctx := context.Background()
	c, repo, _ := newComposer(t, "boss@example.com")
	admin, err := c.Resolve(ctx, identity.Identity{ID: "A1", Email: "boss@example.com"})
	require.NoError(t, err)
	worker, err := c.Resolve(ctx, identity.Identity{ID: "W1", Email: "ann@example.com"})
	require.NoError(t, err)

	_, err = c.ChangeRole(ctx, admin, admin.ID, user.RoleWorker)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	_, err = c.ChangeRole(ctx, worker, admin.ID, user.RoleWorker)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))

	_, err = c.ChangeRole(ctx, admin, worker.ID, user.Role("root"))
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	updated, err := c.ChangeRole(ctx, admin, worker.ID, user.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, updated.Role)

	before := repo.gets.Load()
	resolved, err := c.Resolve(ctx, identity.Identity{ID: "W1", Email: "ann@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, resolved.Role)
	assert.Equal(t, before+1, repo.gets.Load())
}

func TestMiddlewareRequire(t *testing.T) {
	c, _, _ := newComposer(t, "boss@example.com")
	r := chi.NewRouter()
	r.Use(cerr.NewConvertErrorChiMiddleware())
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := &identity.Identity{ID: r.Header.Get("X-Id"), Email: r.Header.Get("X-Email")}
			next.ServeHTTP(w, r.WithContext(identity.ContextWithIdentity(r.Context(), id)))
		})
	})
	r.Use(c.Middleware())
	r.With(Require(ViewAllSessions)).Get("/all", func(w http.ResponseWriter, r *http.Request) {
		cerr.SetJSONResponse(r.Context(), map[string]bool{"ok": true})
	})

	call := func(id, email string) int {
		req := httptest.NewRequest(http.MethodGet, "/all", nil)
		req.Header.Set("X-Id", id)
		req.Header.Set("X-Email", email)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call("A1", "boss@example.com"))
	assert.Equal(t, http.StatusForbidden, call("W1", "ann@example.com"))
}
