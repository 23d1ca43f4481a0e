package main

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/tracker"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type memStore struct {
	mu       sync.Mutex
	tasks    map[string]*task.Task
	projects map[string]*project.Project
	sessions []*session.Session
}

func newMemStore() *memStore {
	return &memStore{
		tasks: map[string]*task.Task{
			"T1": {ID: "T1", ProjectID: "P1", AssignedTo: "w@example.com", Description: "Write report", Status: task.StatusTodo},
		},
		projects: map[string]*project.Project{
			"P1": {ID: "P1", Name: "Apollo", Client: "NASA"},
		},
	}
}

func (s *memStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) UpdateTaskStatus(_ context.Context, id string, status task.Status) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	t.Status = status
	cp := *t
	return &cp, nil
}

func (s *memStore) status(id string) task.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Status
}

func (s *memStore) GetProject(_ context.Context, id string) (*project.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "project not found", nil)
	}
	return p, nil
}

func (s *memStore) ListProjects(context.Context) ([]*project.Project, error) {
	var out []*project.Project
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) CreateSession(_ context.Context, sess *session.Session) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = fmt.Sprintf("S%d", len(s.sessions)+1)
	s.sessions = append(s.sessions, sess)
	return sess, nil
}

func (s *memStore) ListOwnSessions(context.Context) ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*session.Session(nil), s.sessions...), nil
}

func newTestWorkModel(t *testing.T) (*workModel, *memStore) {
	t.Helper()
	store := newMemStore()
	u := &user.User{ID: "U1", Email: "w@example.com", Role: user.RoleWorker}
	ticks := newTickFeed()
	ctrl := tracker.NewController(u, store, store, nil, tracker.NewRecorder(store), tracker.WithTickHandler(ticks.push))
	t.Cleanup(func() { _, _ = ctrl.Stop(context.Background()) })
	return newWorkModel(t.Context(), u, "T1", ctrl, nil, ticks), store
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back, as the program loop would.
func run(t *testing.T, m *workModel, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	_, next := m.Update(cmd())
	return next
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestWorkModel_StartShowsTask(t *testing.T) {
	m, store := newTestWorkModel(t)

	run(t, m, m.start())

	assert.Equal(t, phaseRunning, m.phase)
	assert.Equal(t, task.StatusInProgress, store.status("T1"))
	view := m.View()
	assert.Contains(t, view, "Write report")
	assert.Contains(t, view, "Apollo for NASA")
	assert.Contains(t, view, "running")
	assert.Contains(t, view, "s: stop")
}

func TestWorkModel_TickUpdatesElapsed(t *testing.T) {
	m, _ := newTestWorkModel(t)
	run(t, m, m.start())

	_, cmd := m.Update(tickMsg(65 * time.Second))

	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "00:01:05")
}

func TestWorkModel_StopRecordsAndRestores(t *testing.T) {
	m, store := newTestWorkModel(t)
	run(t, m, m.start())

	_, cmd := m.Update(key("s"))
	assert.Equal(t, phaseStopping, m.phase)
	next := run(t, m, cmd)

	assert.Nil(t, next)
	assert.Equal(t, phaseStopped, m.phase)
	assert.NoError(t, m.err)
	require.NotNil(t, m.last)
	assert.Equal(t, "Apollo", m.last.Project)
	assert.Equal(t, task.StatusTodo, store.status("T1"))
	assert.Len(t, store.sessions, 1)
	assert.Contains(t, m.View(), "Recorded 00:00:00 on Apollo")
	assert.Contains(t, m.View(), "space: start again")
}

func TestWorkModel_StopAndComplete(t *testing.T) {
	m, store := newTestWorkModel(t)
	run(t, m, m.start())

	_, cmd := m.Update(key("c"))
	next := run(t, m, cmd)
	final := run(t, m, next)

	assert.True(t, isQuit(final))
	assert.Equal(t, task.StatusCompleted, store.status("T1"))
	assert.Equal(t, "Task marked as completed", m.note)
	assert.Len(t, store.sessions, 1)
}

func TestWorkModel_QuitStopsFirst(t *testing.T) {
	m, store := newTestWorkModel(t)
	run(t, m, m.start())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	next := run(t, m, cmd)

	assert.True(t, isQuit(next))
	assert.Len(t, store.sessions, 1)
	assert.Equal(t, task.StatusTodo, store.status("T1"))
}

func TestWorkModel_QuitWhileStartingStopsAfterStart(t *testing.T) {
	m, store := newTestWorkModel(t)
	startCmd := m.start()

	_, cmd := m.Update(key("q"))
	assert.Nil(t, cmd)
	assert.Equal(t, phaseStarting, m.phase)

	stopCmd := run(t, m, startCmd)
	assert.Equal(t, phaseStopping, m.phase)
	next := run(t, m, stopCmd)

	assert.True(t, isQuit(next))
	assert.Len(t, store.sessions, 1)
	assert.Equal(t, task.StatusTodo, store.status("T1"))
}

func TestWorkModel_QuitWhileStartingFails(t *testing.T) {
	m, store := newTestWorkModel(t)
	m.taskID = "missing"
	startCmd := m.start()
	m.Update(key("q"))

	next := run(t, m, startCmd)

	assert.True(t, isQuit(next))
	assert.Equal(t, phaseStopped, m.phase)
	assert.Empty(t, store.sessions)
}

func TestWorkModel_StartAgainAfterStop(t *testing.T) {
	m, store := newTestWorkModel(t)
	run(t, m, m.start())
	_, cmd := m.Update(key("s"))
	run(t, m, cmd)

	_, cmd = m.Update(key(" "))
	run(t, m, cmd)
	_, cmd = m.Update(key("s"))
	run(t, m, cmd)

	assert.Len(t, store.sessions, 2)
	assert.Equal(t, task.StatusTodo, store.status("T1"))
}

func TestWorkModel_StartErrorIsShown(t *testing.T) {
	m, _ := newTestWorkModel(t)
	m.taskID = "missing"

	run(t, m, m.start())

	assert.Equal(t, phaseStopped, m.phase)
	assert.True(t, cerr.IsCode(m.err, cerr.NotFound))
	assert.Contains(t, m.View(), "Error:")
}

func TestWorkModel_HistoryIsCapped(t *testing.T) {
	m, _ := newTestWorkModel(t)
	var history []*session.Session
	for i := range 8 {
		history = append(history, &session.Session{
			Project:         "Apollo",
			TaskDescription: fmt.Sprintf("job-%d", i),
			StartTime:       time.Date(2026, 1, 2, 9, 0, 0, 0, time.Local),
			Duration:        int64(i) * 1000,
		})
	}

	m.Update(historyMsg(history))

	view := m.View()
	assert.Contains(t, view, "Recent sessions")
	assert.Contains(t, view, "job-4")
	assert.NotContains(t, view, "job-5")
}

func TestTickFeed_KeepsLatest(t *testing.T) {
	f := newTickFeed()
	f.push(time.Second)
	f.push(2 * time.Second)

	msg := f.wait(t.Context())()

	assert.Equal(t, tickMsg(2*time.Second), msg)
}

func TestTickFeed_WaitEndsWithContext(t *testing.T) {
	f := newTickFeed()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	assert.Nil(t, f.wait(ctx)())
}

func TestKeepWatching_Reconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	attempts := 0

	keepWatching(ctx, "history", time.Millisecond, 4*time.Millisecond, func(context.Context) error {
		attempts++
		if attempts == 3 {
			cancel()
			return ctx.Err()
		}
		return cerr.NewError(cerr.Unavailable, "event stream closed", nil)
	})

	assert.Equal(t, 3, attempts)
}

func TestKeepWatching_StopsOnRejectedCredentials(t *testing.T) {
	attempts := 0

	keepWatching(t.Context(), "history", time.Millisecond, 4*time.Millisecond, func(context.Context) error {
		attempts++
		return cerr.NewError(cerr.Unauthenticated, "token expired", nil)
	})

	assert.Equal(t, 1, attempts)
}

func TestKeepWatching_ReturnsWhenCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	attempts := 0

	done := make(chan struct{})
	go func() {
		defer close(done)
		keepWatching(ctx, "history", time.Hour, time.Hour, func(context.Context) error {
			attempts++
			return cerr.NewError(cerr.Unavailable, "event stream broken", nil)
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepWatching did not return after cancel")
	}
	assert.Equal(t, 1, attempts)
}
