package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/session"
	sessionrepo "github.com/kazz187/timeguild/internal/session/repositoryimpl"
	"github.com/kazz187/timeguild/internal/user"
	userrepo "github.com/kazz187/timeguild/internal/user/repositoryimpl"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

func newRouter(t *testing.T) (http.Handler, map[string]*user.User) {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	users := userrepo.NewYAMLRepository(s)
	known := map[string]*user.User{
		"W1": {ID: "W1", Email: "ann@example.com", Role: user.RoleWorker},
		"W2": {ID: "W2", Email: "bob@example.com", Role: user.RoleWorker},
		"A1": {ID: "A1", Email: "boss@example.com", Role: user.RoleAdmin},
	}
	for _, u := range known {
		require.NoError(t, users.Create(context.Background(), u))
	}
	srv := session.NewServer(sessionrepo.NewYAMLRepository(s), users, eventbus.New())

	r := chi.NewRouter()
	r.Use(cerr.NewConvertErrorChiMiddleware())
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(user.ContextWithUser(r.Context(), known[r.Header.Get("X-User")])))
		})
	})
	r.Post("/sessions", srv.CreateSession)
	r.Get("/sessions", srv.ListOwnSessions)
	r.Get("/sessions/all", srv.ListAllSessions)
	return r, known
}

func call(h http.Handler, userID, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-User", userID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionBody(start time.Time, d time.Duration) string {
	return fmt.Sprintf(`{"project_id":"P1","project":"Website","task_id":"T1","start_time":%q,"stop_time":%q,"duration_ms":%d}`,
		start.Format(time.RFC3339Nano), start.Add(d).Format(time.RFC3339Nano), d.Milliseconds())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) []*session.Session {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var resp session.ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Sessions
}

func TestCreateAndList(t *testing.T) {
	h, _ := newRouter(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	rec := call(h, "W1", http.MethodPost, "/sessions", sessionBody(base, 65*time.Second))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "W1", created.UserID)
	assert.Equal(t, "ann@example.com", created.UserEmail)
	assert.Equal(t, int64(65000), created.Duration)

	require.Equal(t, http.StatusCreated, call(h, "W1", http.MethodPost, "/sessions", sessionBody(base.Add(time.Hour), time.Minute)).Code)
	require.Equal(t, http.StatusCreated, call(h, "W2", http.MethodPost, "/sessions", sessionBody(base.Add(30*time.Minute), time.Minute)).Code)

	own := decode(t, call(h, "W1", http.MethodGet, "/sessions", ""))
	require.Len(t, own, 2)
	assert.True(t, own[0].StartTime.After(own[1].StartTime))

	all := decode(t, call(h, "A1", http.MethodGet, "/sessions/all", ""))
	require.Len(t, all, 3)
	assert.Equal(t, "W1", all[0].UserID)
	assert.Equal(t, "W2", all[1].UserID)
	assert.Equal(t, "W1", all[2].UserID)
}

func TestCreateRejectsBadIntervals(t *testing.T) {
	h, _ := newRouter(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	rec := call(h, "W1", http.MethodPost, "/sessions", sessionBody(base, -time.Second))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := fmt.Sprintf(`{"project_id":"P1","start_time":%q,"stop_time":%q,"duration_ms":1}`,
		base.Format(time.RFC3339), base.Add(time.Second).Format(time.RFC3339))
	rec = call(h, "W1", http.MethodPost, "/sessions", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, decode(t, call(h, "W1", http.MethodGet, "/sessions", "")))
}
