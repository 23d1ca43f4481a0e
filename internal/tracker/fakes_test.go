package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kazz187/timeguild/internal/camera"
	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/internal/verification"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type fakeTasks struct {
	mu        sync.Mutex
	tasks     map[string]*task.Task
	updates   []task.Status
	updateErr error
}

func newFakeTasks(tasks ...*task.Task) *fakeTasks {
	f := &fakeTasks{tasks: make(map[string]*task.Task)}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) GetTask(_ context.Context, id string) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) UpdateTaskStatus(_ context.Context, id string, status task.Status) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	t.Status = status
	f.updates = append(f.updates, status)
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) status(id string) task.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id].Status
}

func (f *fakeTasks) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeProjects struct {
	projects []*project.Project
}

func (f *fakeProjects) GetProject(_ context.Context, id string) (*project.Project, error) {
	for _, p := range f.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "project not found", nil)
}

func (f *fakeProjects) ListProjects(context.Context) ([]*project.Project, error) {
	return f.projects, nil
}

type fakeSessions struct {
	mu        sync.Mutex
	history   []*session.Session // newest first
	created   []*session.Session
	createErr error
	listErr   error
}

func (f *fakeSessions) CreateSession(_ context.Context, s *session.Session) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *s
	cp.ID = fmt.Sprintf("S%d", len(f.created)+1)
	f.created = append(f.created, &cp)
	return &cp, nil
}

func (f *fakeSessions) ListOwnSessions(context.Context) ([]*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.history, nil
}

func (f *fakeSessions) createdSessions() []*session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*session.Session(nil), f.created...)
}

type fakeLog struct {
	mu      sync.Mutex
	entries []*verification.Entry
}

func (f *fakeLog) AppendVerification(_ context.Context, e *verification.Entry) (*verification.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeVerifier struct {
	mu       sync.Mutex
	calls    int
	previous [][]string
	err      error
}

func (f *fakeVerifier) Verify(_ context.Context, uri string, previous []string) (*verification.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.previous = append(f.previous, previous)
	if f.err != nil {
		return nil, f.err
	}
	return &verification.Result{IsWorking: true, Confidence: 0.9, Details: "typing"}, nil
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCamera struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	released   int
	held       bool
}

func (f *fakeCamera) Acquire(context.Context) (camera.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	if f.held {
		return nil, camera.ErrBusy
	}
	f.held = true
	f.acquired++
	return &fakeStream{cam: f}, nil
}

func (f *fakeCamera) counts() (acquired, released int, held bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired, f.released, f.held
}

type fakeStream struct {
	cam *fakeCamera
}

func (s *fakeStream) Capture(context.Context) (*camera.Frame, error) {
	return &camera.Frame{MIMEType: "image/png", Data: []byte("frame"), CapturedAt: time.Now()}, nil
}

func (s *fakeStream) Release() error {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.cam.released++
	s.cam.held = false
	return nil
}

type fakeModel struct {
	calls int
	known []KnownProject
	err   error
}

func (f *fakeModel) Suggest(_ context.Context, description string, known []KnownProject) (*Suggestion, error) {
	f.calls++
	f.known = known
	if f.err != nil {
		return nil, f.err
	}
	return &Suggestion{ProjectName: known[0].Name, Reason: "matches " + description}, nil
}

var errStore = errors.New("store unreachable")

type fixture struct {
	tasks    *fakeTasks
	projects *fakeProjects
	sessions *fakeSessions
	log      *fakeLog
	verifier *fakeVerifier
	camera   *fakeCamera
	sampler  *Sampler
	ctrl     *Controller
}

func newFixture(opts ...ControllerOption) *fixture {
	f := &fixture{
		tasks: newFakeTasks(
			&task.Task{ID: "T1", ProjectID: "P1", AssignedTo: "w@example.com", Description: "write report", Status: task.StatusTodo},
			&task.Task{ID: "T2", ProjectID: "P1", AssignedTo: "w@example.com", Description: "review", Status: task.StatusTodo},
			&task.Task{ID: "T3", ProjectID: "P1", AssignedTo: "w@example.com", Description: "done", Status: task.StatusCompleted},
			&task.Task{ID: "T4", ProjectID: "P1", AssignedTo: "w@example.com", Description: "signed off", Status: task.StatusVerified},
			&task.Task{ID: "T5", ProjectID: "gone", AssignedTo: "w@example.com", Description: "orphan", Status: task.StatusTodo},
		),
		projects: &fakeProjects{projects: []*project.Project{
			{ID: "P1", Name: "Apollo", Client: "NASA"},
			{ID: "P2", Name: "Gemini", Client: "NASA"},
		}},
		sessions: &fakeSessions{},
		log:      &fakeLog{},
		verifier: &fakeVerifier{},
		camera:   &fakeCamera{},
	}
	f.sampler = NewSampler(f.camera, f.verifier, f.sessions, f.log)
	u := &user.User{ID: "U1", Email: "w@example.com", Role: user.RoleWorker}
	f.ctrl = NewController(u, f.tasks, f.projects, f.sampler, NewRecorder(f.sessions), opts...)
	return f
}
