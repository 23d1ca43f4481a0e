package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kazz187/timeguild/internal/access"
	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/internal/verification"
)

func (c *Client) CreateProject(ctx context.Context, name, client string) (*project.Project, error) {
	var p project.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", &project.CreateProjectRequest{Name: name, Client: client}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*project.Project, error) {
	var p project.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]*project.Project, error) {
	var resp project.ListProjectsResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *Client) AssignTask(ctx context.Context, projectID, assignedTo, description string) (*task.Task, error) {
	var t task.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", &task.AssignTaskRequest{
		ProjectID:   projectID,
		AssignedTo:  assignedTo,
		Description: description,
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns the caller's tasks. Admins see every task, optionally
// narrowed to one assignee.
func (c *Client) ListTasks(ctx context.Context, assignedTo string) ([]*task.Task, error) {
	path := "/api/tasks"
	if assignedTo != "" {
		path += "?" + url.Values{"assigned_to": {assignedTo}}.Encode()
	}
	var resp task.ListTasksResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) UpdateTaskStatus(ctx context.Context, id string, status task.Status) (*task.Task, error) {
	var t task.Task
	err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id)+"/status", &task.UpdateStatusRequest{Status: status}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) CreateSession(ctx context.Context, s *session.Session) (*session.Session, error) {
	var created session.Session
	err := c.do(ctx, http.MethodPost, "/api/sessions", &session.CreateSessionRequest{
		ProjectID:       s.ProjectID,
		Project:         s.Project,
		TaskID:          s.TaskID,
		TaskDescription: s.TaskDescription,
		StartTime:       s.StartTime,
		StopTime:        s.StopTime,
		Duration:        s.Duration,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListOwnSessions(ctx context.Context) ([]*session.Session, error) {
	return c.listSessions(ctx, "/api/sessions")
}

func (c *Client) ListAllSessions(ctx context.Context) ([]*session.Session, error) {
	return c.listSessions(ctx, "/api/sessions/all")
}

func (c *Client) listSessions(ctx context.Context, path string) ([]*session.Session, error) {
	var resp session.ListSessionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	sortSessions(resp.Sessions)
	return resp.Sessions, nil
}

func (c *Client) AppendVerification(ctx context.Context, e *verification.Entry) (*verification.Entry, error) {
	var created verification.Entry
	err := c.do(ctx, http.MethodPost, "/api/verifications", &verification.AppendEntryRequest{
		TaskID:       e.TaskID,
		PhotoDataURI: e.PhotoDataURI,
		Result:       e.Result,
		Timestamp:    e.Timestamp,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListVerifications(ctx context.Context) ([]*verification.Entry, error) {
	var resp verification.ListEntriesResponse
	if err := c.do(ctx, http.MethodGet, "/api/verifications", nil, &resp); err != nil {
		return nil, err
	}
	sortEntries(resp.Entries)
	return resp.Entries, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]*user.User, error) {
	var resp user.ListUsersResponse
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) ChangeRole(ctx context.Context, userID string, role user.Role) (*user.User, error) {
	var u user.User
	err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(userID)+"/role", &access.ChangeRoleRequest{Role: role}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
