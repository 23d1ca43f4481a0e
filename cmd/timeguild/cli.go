package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kazz187/timeguild/internal/access"
	"github.com/kazz187/timeguild/internal/client"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/tracker"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/internal/verification"
	"github.com/kazz187/timeguild/pkg/color"
)

const timeLayout = "2006-01-02 15:04"

var errNotSignedIn = errors.New("not signed in, run `timeguild login` first")

type cli struct {
	serverURL string
	credPath  string
	client    *client.Client
	in        *bufio.Reader
	out       io.Writer
	now       func() time.Time
}

func newCLI(serverURL string, in io.Reader, out io.Writer) (*cli, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}
	c := &cli{
		serverURL: strings.TrimRight(serverURL, "/"),
		credPath:  path,
		in:        bufio.NewReader(in),
		out:       out,
		now:       time.Now,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect builds the API client, reusing the cached token while it is valid
// for this server.
func (c *cli) connect() error {
	creds, err := loadCredentials(c.credPath)
	if err != nil {
		return err
	}
	c.client = client.New(c.serverURL)
	if creds.valid(c.serverURL, c.now()) {
		c.client.SetToken(creds.AccessToken)
	}
	return nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// prompt reads one line. TIMEGUILD_PASSWORD answers password prompts
// non-interactively.
func (c *cli) prompt(label string, secret bool) (string, error) {
	if secret {
		if v := os.Getenv("TIMEGUILD_PASSWORD"); v != "" {
			return v, nil
		}
	}
	c.printf("%s: ", label)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// me resolves the signed-in user and translates auth failures into a hint.
func (c *cli) me(ctx context.Context) (*access.MeResponse, error) {
	if c.client.Token() == "" {
		return nil, errNotSignedIn
	}
	me, err := c.client.Me(ctx)
	if err != nil {
		if client.IsAuthError(err) {
			return nil, fmt.Errorf("%w: %w", errNotSignedIn, err)
		}
		return nil, err
	}
	return me, nil
}

// requireView fails early for commands outside the caller's role. The server
// enforces the same gate.
func (c *cli) requireView(ctx context.Context, view access.View) (*access.MeResponse, error) {
	me, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	if !access.Allows(me.User.Role, view) {
		return nil, fmt.Errorf("this command is not available to %s accounts", me.User.Role)
	}
	return me, nil
}

func (c *cli) login(ctx context.Context, email string, signup bool) error {
	password, err := c.prompt("Password", true)
	if err != nil {
		return err
	}
	signIn := c.client.SignIn
	if signup {
		signIn = c.client.SignUp
	}
	tok, err := signIn(ctx, email, password)
	if err != nil {
		return err
	}
	creds := &credentials{
		ServerURL:   c.serverURL,
		Email:       tok.Identity.Email,
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
	}
	if err := saveCredentials(c.credPath, creds); err != nil {
		return err
	}
	c.printf("Signed in as %s\n", color.Bold(tok.Identity.Email))
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if c.client.Token() != "" {
		if err := c.client.SignOut(ctx); err != nil && !client.IsAuthError(err) {
			return err
		}
	}
	if err := removeCredentials(c.credPath); err != nil {
		return err
	}
	c.printf("Signed out\n")
	return nil
}

func (c *cli) passwd(ctx context.Context) error {
	if c.client.Token() == "" {
		return errNotSignedIn
	}
	current, err := c.prompt("Current password", false)
	if err != nil {
		return err
	}
	next, err := c.prompt("New password", false)
	if err != nil {
		return err
	}
	if err := c.client.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	c.printf("%s\n", color.Success("Password changed"))
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	views := make([]string, len(me.Views))
	for i, v := range me.Views {
		views[i] = string(v)
	}
	c.printf("%s (%s)\nrole:  %s\nviews: %s\n", color.Bold(me.User.DisplayName()), me.User.Email, me.User.Role, strings.Join(views, ", "))
	return nil
}

func (c *cli) tasks(ctx context.Context, assignee string, watch bool) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	if me.User.Role != user.RoleAdmin {
		assignee = ""
	}
	projects, err := c.projectNames(ctx)
	if err != nil {
		return err
	}
	if watch {
		return c.client.WatchTasks(ctx, assignee, func(tasks []*task.Task) {
			c.printf("%s\n", renderTasks(tasks, projects))
		})
	}
	tasks, err := c.client.ListTasks(ctx, assignee)
	if err != nil {
		return err
	}
	c.printf("%s\n", renderTasks(tasks, projects))
	return nil
}

func (c *cli) projectNames(ctx context.Context) (map[string]string, error) {
	projects, err := c.client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (c *cli) complete(ctx context.Context, taskID string) error {
	me, err := c.me(ctx)
	if err != nil {
		return err
	}
	ctrl := tracker.NewController(me.User, c.client, c.client, nil, nil)
	t, err := ctrl.MarkComplete(ctx, taskID)
	if err != nil {
		return err
	}
	c.printf("%s is now %s\n", t.Description, color.Status(string(t.Status)))
	return nil
}

func (c *cli) suggest(ctx context.Context, words []string) error {
	if _, err := c.requireView(ctx, access.ViewSuggestion); err != nil {
		return err
	}
	s := tracker.NewSuggester(c.client, c.client, c.client)
	suggestion, err := s.SuggestForDescription(ctx, strings.Join(words, " "))
	if err != nil {
		return err
	}
	c.printf("Suggested project: %s\n%s\n", color.Bold(suggestion.ProjectName), color.Dim(suggestion.Reason))
	return nil
}

func (c *cli) sessions(ctx context.Context, watch bool) error {
	if _, err := c.requireView(ctx, access.ViewOwnSessions); err != nil {
		return err
	}
	if watch {
		return c.client.WatchOwnSessions(ctx, func(s []*session.Session) {
			c.printf("%s\n", renderSessions(s, false))
		})
	}
	sessions, err := c.client.ListOwnSessions(ctx)
	if err != nil {
		return err
	}
	c.printf("%s\n", renderSessions(sessions, false))
	return nil
}

func (c *cli) createProject(ctx context.Context, name, clientName string) error {
	if _, err := c.requireView(ctx, access.ViewProjectAdmin); err != nil {
		return err
	}
	p, err := c.client.CreateProject(ctx, name, clientName)
	if err != nil {
		return err
	}
	c.printf("Created project %s (%s)\n", color.Bold(p.Name), p.ID)
	return nil
}

func (c *cli) listProjects(ctx context.Context) error {
	if _, err := c.me(ctx); err != nil {
		return err
	}
	projects, err := c.client.ListProjects(ctx)
	if err != nil {
		return err
	}
	t := newTable("ID", "NAME", "CLIENT", "CREATED")
	for _, p := range projects {
		t.Row(p.ID, p.Name, p.Client, p.CreatedAt.Local().Format(timeLayout))
	}
	c.printf("%s\n", t.String())
	return nil
}

func (c *cli) assignTask(ctx context.Context, projectID, assignee string, words []string) error {
	if _, err := c.requireView(ctx, access.ViewTaskAdmin); err != nil {
		return err
	}
	t, err := c.client.AssignTask(ctx, projectID, assignee, strings.Join(words, " "))
	if err != nil {
		return err
	}
	c.printf("Assigned %s to %s (%s)\n", color.Bold(t.Description), color.User(t.AssignedTo), t.ID)
	return nil
}

func (c *cli) verifyTask(ctx context.Context, taskID string) error {
	me, err := c.requireView(ctx, access.ViewTaskAdmin)
	if err != nil {
		return err
	}
	ctrl := tracker.NewController(me.User, c.client, c.client, nil, nil)
	t, err := ctrl.Verify(ctx, taskID)
	if err != nil {
		return err
	}
	c.printf("%s is now %s\n", t.Description, color.Status(string(t.Status)))
	return nil
}

func (c *cli) listUsers(ctx context.Context) error {
	if _, err := c.requireView(ctx, access.ViewUserAdmin); err != nil {
		return err
	}
	users, err := c.client.ListUsers(ctx)
	if err != nil {
		return err
	}
	t := newTable("ID", "EMAIL", "NAME", "ROLE")
	for _, u := range users {
		t.Row(u.ID, u.Email, u.DisplayName(), string(u.Role))
	}
	c.printf("%s\n", t.String())
	return nil
}

func (c *cli) changeRole(ctx context.Context, userID, role string) error {
	if _, err := c.requireView(ctx, access.ViewUserAdmin); err != nil {
		return err
	}
	u, err := c.client.ChangeRole(ctx, userID, user.Role(role))
	if err != nil {
		return err
	}
	c.printf("%s is now %s\n", u.Email, color.Bold(string(u.Role)))
	return nil
}

func (c *cli) verificationLog(ctx context.Context, watch bool) error {
	if _, err := c.requireView(ctx, access.ViewVerificationLog); err != nil {
		return err
	}
	if watch {
		return c.client.WatchVerifications(ctx, func(e []*verification.Entry) {
			c.printf("%s\n", renderEntries(e))
		})
	}
	entries, err := c.client.ListVerifications(ctx)
	if err != nil {
		return err
	}
	c.printf("%s\n", renderEntries(entries))
	return nil
}

func (c *cli) allSessions(ctx context.Context, watch bool) error {
	if _, err := c.requireView(ctx, access.ViewAllSessions); err != nil {
		return err
	}
	if watch {
		return c.client.WatchAllSessions(ctx, func(s []*session.Session) {
			c.printf("%s\n", renderSessions(s, true))
		})
	}
	sessions, err := c.client.ListAllSessions(ctx)
	if err != nil {
		return err
	}
	c.printf("%s\n", renderSessions(sessions, true))
	return nil
}

func (c *cli) pushTest(ctx context.Context) error {
	if _, err := c.me(ctx); err != nil {
		return err
	}
	if err := c.client.SendTestPush(ctx); err != nil {
		return err
	}
	c.printf("%s\n", color.Success("Test notification sent"))
	return nil
}

func (c *cli) pushKey(ctx context.Context) error {
	if _, err := c.me(ctx); err != nil {
		return err
	}
	key, err := c.client.VapidPublicKey(ctx)
	if err != nil {
		return err
	}
	c.printf("%s\n", key)
	return nil
}

func (c *cli) pushSubscribe(ctx context.Context, endpoint, p256dh, auth string) error {
	if _, err := c.me(ctx); err != nil {
		return err
	}
	if err := c.client.RegisterPush(ctx, endpoint, p256dh, auth); err != nil {
		return err
	}
	c.printf("%s\n", color.Success("Subscribed"))
	return nil
}

func (c *cli) pushUnsubscribe(ctx context.Context, endpoint string) error {
	if _, err := c.me(ctx); err != nil {
		return err
	}
	if err := c.client.UnregisterPush(ctx, endpoint); err != nil {
		return err
	}
	c.printf("Unsubscribed\n")
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers(headers...)
}

func renderTasks(tasks []*task.Task, projects map[string]string) string {
	if len(tasks) == 0 {
		return color.Dim("No tasks")
	}
	t := newTable("ID", "PROJECT", "DESCRIPTION", "ASSIGNEE", "STATUS")
	for _, tk := range tasks {
		name, ok := projects[tk.ProjectID]
		if !ok {
			name = tk.ProjectID
		}
		t.Row(tk.ID, name, tk.Description, tk.AssignedTo, color.Status(string(tk.Status)))
	}
	return t.String()
}

func renderSessions(sessions []*session.Session, withUser bool) string {
	if len(sessions) == 0 {
		return color.Dim("No sessions")
	}
	headers := []string{"STARTED", "PROJECT", "TASK", "DURATION"}
	if withUser {
		headers = append([]string{"USER"}, headers...)
	}
	t := newTable(headers...)
	for _, s := range sessions {
		row := []string{
			s.StartTime.Local().Format(timeLayout),
			s.Project,
			s.TaskDescription,
			tracker.FormatElapsed(time.Duration(s.Duration) * time.Millisecond),
		}
		if withUser {
			row = append([]string{color.User(s.UserEmail)}, row...)
		}
		t.Row(row...)
	}
	return t.String()
}

func renderEntries(entries []*verification.Entry) string {
	if len(entries) == 0 {
		return color.Dim("No verifications")
	}
	t := newTable("TIME", "USER", "TASK", "VERDICT", "CONFIDENCE", "DETAILS")
	for _, e := range entries {
		t.Row(
			e.Timestamp.Local().Format(timeLayout),
			color.User(e.UserEmail),
			e.TaskID,
			color.Verdict(e.Result.IsWorking),
			fmt.Sprintf("%.0f%%", e.Result.Confidence*100),
			e.Result.Details,
		)
	}
	return t.String()
}
