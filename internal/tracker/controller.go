package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
)

// Controller drives the task lifecycle of one signed-in user and keeps the
// clock, the sampler and the store's task status in step.
type Controller struct {
	user     *user.User
	tasks    TaskStore
	projects ProjectStore
	clock    *Clock
	sampler  *Sampler
	recorder *Recorder
	onTick   func(time.Duration)

	mu      sync.Mutex
	running *runningTask
}

type runningTask struct {
	task           *task.Task
	project        *project.Project
	preStartStatus task.Status
	startedAt      time.Time
	sampling       bool
}

type ControllerOption func(*Controller)

// WithTickHandler installs a callback for the clock's per-second ticks.
// It runs on the clock goroutine and must not call the Controller.
func WithTickHandler(fn func(elapsed time.Duration)) ControllerOption {
	return func(c *Controller) { c.onTick = fn }
}

func NewController(u *user.User, tasks TaskStore, projects ProjectStore, sampler *Sampler, recorder *Recorder, opts ...ControllerOption) *Controller {
	c := &Controller{
		user:     u,
		tasks:    tasks,
		projects: projects,
		clock:    NewClock(),
		sampler:  sampler,
		recorder: recorder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type StartResult struct {
	Task    *task.Task
	Project *project.Project
	// Warning is set when tracking runs without verification.
	Warning error
}

// Start begins tracking taskID. ctx bounds the capture loop.
func (c *Controller) Start(ctx context.Context, taskID string) (*StartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskRunning, c.running.task.Description)
	}

	t, err := c.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	p, err := c.projects.GetProject(ctx, t.ProjectID)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoProjectResolved, err)
		}
		return nil, err
	}
	if t.Status == task.StatusVerified {
		return nil, fmt.Errorf("%w: task is already verified", ErrInvalidTransition)
	}

	pre := t.Status
	updated, err := c.tasks.UpdateTaskStatus(ctx, t.ID, task.StatusInProgress)
	if err != nil {
		return nil, err
	}
	if err := c.clock.Start(c.onTick); err != nil {
		return nil, err
	}
	rt := &runningTask{
		task:           updated,
		project:        p,
		preStartStatus: pre,
		startedAt:      time.Now(),
	}
	res := &StartResult{Task: updated, Project: p}
	if c.sampler != nil {
		err := c.sampler.Activate(ctx, Owner{UserID: c.user.ID, UserEmail: c.user.Email, TaskID: t.ID})
		if err != nil {
			slog.WarnContext(ctx, "tracking without work verification", "task_id", t.ID, "error", err)
			res.Warning = err
		} else {
			rt.sampling = true
		}
	}
	c.running = rt
	return res, nil
}

// Stop ends the running session, records it and restores the task's status
// from before Start. It returns nil, nil when nothing runs. The timer is
// stopped and the status restore attempted even when recording fails.
func (c *Controller) Stop(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt := c.running
	if rt == nil {
		return nil, nil
	}
	start, stop, _ := c.clock.Stop()
	if rt.sampling {
		c.sampler.Deactivate()
	}
	c.running = nil

	sess, recordErr := c.recorder.Record(ctx, RecordInput{
		UserID:    c.user.ID,
		UserEmail: c.user.Email,
		Project:   rt.project,
		Task:      rt.task,
		Start:     start,
		Stop:      stop,
	})
	var restoreErr error
	if _, err := c.tasks.UpdateTaskStatus(ctx, rt.task.ID, rt.preStartStatus); err != nil {
		restoreErr = fmt.Errorf("failed to restore task status to %s: %w", rt.preStartStatus, err)
	}
	return sess, errors.Join(recordErr, restoreErr)
}

// MarkComplete moves a todo or inprogress task that is not running to completed.
func (c *Controller) MarkComplete(ctx context.Context, taskID string) (*task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil && c.running.task.ID == taskID {
		return nil, fmt.Errorf("%w: stop the timer first", ErrInvalidTransition)
	}
	t, err := c.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case task.StatusTodo, task.StatusInProgress:
	default:
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	return c.tasks.UpdateTaskStatus(ctx, taskID, task.StatusCompleted)
}

// Verify moves a completed task to verified.
func (c *Controller) Verify(ctx context.Context, taskID string) (*task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusCompleted {
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	return c.tasks.UpdateTaskStatus(ctx, taskID, task.StatusVerified)
}

type Snapshot struct {
	Running   bool
	Task      *task.Task
	Project   *project.Project
	StartedAt time.Time
	Elapsed   time.Duration
	Sampling  bool
	Stats     Stats
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var snap Snapshot
	if c.sampler != nil {
		snap.Stats = c.sampler.Stats()
	}
	if c.running == nil {
		return snap
	}
	snap.Running = true
	snap.Task = c.running.task
	snap.Project = c.running.project
	snap.StartedAt = c.running.startedAt
	snap.Elapsed = c.clock.Elapsed()
	snap.Sampling = c.running.sampling
	return snap
}
