package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/timeguild/internal/access"
	"github.com/kazz187/timeguild/internal/identity"
	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/color"
)

type fakeAPI struct {
	*httptest.Server
	role       user.Role
	usersCalls atomic.Int32
}

func newFakeAPI(t *testing.T, role user.Role) *fakeAPI {
	t.Helper()
	api := &fakeAPI{role: role}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var req identity.CredentialsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"code": "unauthenticated", "message": "invalid email or password"})
			return
		}
		writeJSON(w, identity.Token{
			AccessToken: "tok-" + req.Email,
			ExpiresAt:   time.Now().Add(time.Hour),
			Identity:    identity.Identity{ID: "U1", Email: req.Email},
		})
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"code": "unauthenticated", "message": "missing token"})
			return
		}
		writeJSON(w, access.MeResponse{
			User:  &user.User{ID: "U1", Email: "w@example.com", Role: api.role},
			Views: access.Views(api.role),
		})
	})
	mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		api.usersCalls.Add(1)
		writeJSON(w, user.ListUsersResponse{Users: []*user.User{{ID: "U1", Email: "w@example.com", Role: user.RoleWorker}}})
	})
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, project.ListProjectsResponse{Projects: []*project.Project{{ID: "P1", Name: "Apollo", Client: "NASA"}}})
	})
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, task.ListTasksResponse{Tasks: []*task.Task{
			{ID: "T1", ProjectID: "P1", AssignedTo: "w@example.com", Description: "Write report", Status: task.StatusTodo},
		}})
	})
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func newTestCLI(t *testing.T, serverURL, input string) (*cli, *bytes.Buffer) {
	t.Helper()
	color.SetEnabled(false)
	out := &bytes.Buffer{}
	c := &cli{
		serverURL: serverURL,
		credPath:  filepath.Join(t.TempDir(), "timeguild", "credentials.yaml"),
		in:        bufioReader(input),
		out:       out,
		now:       time.Now,
	}
	require.NoError(t, c.connect())
	return c, out
}

func bufioReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestCLI_LoginCachesToken(t *testing.T) {
	t.Setenv("TIMEGUILD_PASSWORD", "")
	api := newFakeAPI(t, user.RoleWorker)
	c, out := newTestCLI(t, api.URL, "secret1\n")

	require.NoError(t, c.login(t.Context(), "w@example.com", false))
	assert.Contains(t, out.String(), "Signed in as w@example.com")

	creds, err := loadCredentials(c.credPath)
	require.NoError(t, err)
	assert.Equal(t, "tok-w@example.com", creds.AccessToken)
	assert.Equal(t, api.URL, creds.ServerURL)

	// A fresh process picks the cached token up.
	again := &cli{serverURL: api.URL, credPath: c.credPath, in: bufioReader(""), out: out, now: time.Now}
	require.NoError(t, again.connect())
	assert.Equal(t, "tok-w@example.com", again.client.Token())
}

func TestCLI_LoginWrongPassword(t *testing.T) {
	t.Setenv("TIMEGUILD_PASSWORD", "")
	api := newFakeAPI(t, user.RoleWorker)
	c, _ := newTestCLI(t, api.URL, "nope\n")

	err := c.login(t.Context(), "w@example.com", false)

	assert.Error(t, err)
	creds, err := loadCredentials(c.credPath)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestCLI_CommandsNeedSignIn(t *testing.T) {
	api := newFakeAPI(t, user.RoleWorker)
	c, _ := newTestCLI(t, api.URL, "")

	err := c.whoami(t.Context())

	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestCLI_AdminCommandsAreGated(t *testing.T) {
	api := newFakeAPI(t, user.RoleWorker)
	c, _ := newTestCLI(t, api.URL, "")
	c.client.SetToken("tok")

	err := c.listUsers(t.Context())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available to worker accounts")
	assert.Zero(t, api.usersCalls.Load())
}

func TestCLI_AdminListsUsers(t *testing.T) {
	api := newFakeAPI(t, user.RoleAdmin)
	c, out := newTestCLI(t, api.URL, "")
	c.client.SetToken("tok")

	require.NoError(t, c.listUsers(t.Context()))

	assert.Equal(t, int32(1), api.usersCalls.Load())
	assert.Contains(t, out.String(), "w@example.com")
}

func TestCLI_TasksShowProjectNames(t *testing.T) {
	api := newFakeAPI(t, user.RoleWorker)
	c, out := newTestCLI(t, api.URL, "")
	c.client.SetToken("tok")

	require.NoError(t, c.tasks(t.Context(), "someone@example.com", false))

	assert.Contains(t, out.String(), "Apollo")
	assert.Contains(t, out.String(), "Write report")
	assert.Contains(t, out.String(), "todo")
}

func TestCLI_WorkRejectsBadInterval(t *testing.T) {
	api := newFakeAPI(t, user.RoleWorker)
	c, _ := newTestCLI(t, api.URL, "")
	c.client.SetToken("tok")

	err := c.work(t.Context(), "T1", "none", 0)

	assert.ErrorContains(t, err, "sample interval")
}

func TestPrompt_TrimsLineEndings(t *testing.T) {
	c := &cli{in: bufioReader("secret1\r\nlast"), out: &bytes.Buffer{}}

	first, err := c.prompt("Current password", false)
	require.NoError(t, err)
	second, err := c.prompt("New password", false)
	require.NoError(t, err)

	assert.Equal(t, "secret1", first)
	assert.Equal(t, "last", second)
}

func TestRenderEmptyLists(t *testing.T) {
	color.SetEnabled(false)

	assert.Equal(t, "No tasks", renderTasks(nil, nil))
	assert.Equal(t, "No sessions", renderSessions(nil, true))
	assert.Equal(t, "No verifications", renderEntries(nil))
	assert.True(t, strings.Contains(renderTasks([]*task.Task{{ID: "T9", ProjectID: "P9", Status: task.StatusVerified}}, nil), "P9"))
}
