package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/pkg/cerr"
)

func TestController_StartStopRestoresStatus(t *testing.T) {
	for _, pre := range []task.Status{task.StatusTodo, task.StatusInProgress, task.StatusCompleted} {
		t.Run(string(pre), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			f.tasks.tasks["T1"].Status = pre

			res, err := f.ctrl.Start(ctx, "T1")
			require.NoError(t, err)
			assert.Nil(t, res.Warning)
			assert.Equal(t, "Apollo", res.Project.Name)
			assert.Equal(t, task.StatusInProgress, f.tasks.status("T1"))
			assert.True(t, f.ctrl.Snapshot().Running)

			sess, err := f.ctrl.Stop(ctx)
			require.NoError(t, err)
			require.NotNil(t, sess)
			assert.Equal(t, pre, f.tasks.status("T1"))
			assert.False(t, f.ctrl.Snapshot().Running)

			assert.Equal(t, "U1", sess.UserID)
			assert.Equal(t, "w@example.com", sess.UserEmail)
			assert.Equal(t, "P1", sess.ProjectID)
			assert.Equal(t, "Apollo", sess.Project)
			assert.Equal(t, "T1", sess.TaskID)
			assert.Equal(t, "write report", sess.TaskDescription)
			assert.Equal(t, sess.StopTime.Sub(sess.StartTime).Milliseconds(), sess.Duration)
		})
	}
}

func TestController_StartRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("verified task", func(t *testing.T) {
		f := newFixture()
		_, err := f.ctrl.Start(ctx, "T4")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Zero(t, f.tasks.updateCount())
		assert.False(t, f.ctrl.Snapshot().Running)
	})

	t.Run("unresolvable project", func(t *testing.T) {
		f := newFixture()
		_, err := f.ctrl.Start(ctx, "T5")
		assert.ErrorIs(t, err, ErrNoProjectResolved)
		assert.True(t, cerr.IsCode(err, cerr.NotFound))
		assert.Zero(t, f.tasks.updateCount())
		acquired, _, _ := f.camera.counts()
		assert.Zero(t, acquired)
	})

	t.Run("unknown task", func(t *testing.T) {
		f := newFixture()
		_, err := f.ctrl.Start(ctx, "nope")
		assert.True(t, cerr.IsCode(err, cerr.NotFound))
		assert.Zero(t, f.tasks.updateCount())
	})

	t.Run("status write fails", func(t *testing.T) {
		f := newFixture()
		f.tasks.updateErr = errStore
		_, err := f.ctrl.Start(ctx, "T1")
		assert.ErrorIs(t, err, errStore)
		assert.False(t, f.ctrl.Snapshot().Running)
		acquired, _, _ := f.camera.counts()
		assert.Zero(t, acquired)
	})
}

func TestController_SecondStartRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.ctrl.Start(ctx, "T1")
	require.NoError(t, err)
	defer f.ctrl.Stop(ctx)

	_, err = f.ctrl.Start(ctx, "T2")
	assert.ErrorIs(t, err, ErrTaskRunning)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
	assert.Equal(t, task.StatusTodo, f.tasks.status("T2"))
	assert.Equal(t, "T1", f.ctrl.Snapshot().Task.ID)
}

func TestController_ConcurrentStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started []string
		errs    []error
	)
	for _, id := range []string{"T1", "T2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ctrl.Start(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			started = append(started, id)
		}()
	}
	wg.Wait()

	require.Len(t, started, 1)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrTaskRunning)
	loser := "T1"
	if started[0] == "T1" {
		loser = "T2"
	}
	assert.Equal(t, task.StatusTodo, f.tasks.status(loser))
	assert.Equal(t, task.StatusInProgress, f.tasks.status(started[0]))

	_, err := f.ctrl.Stop(ctx)
	require.NoError(t, err)
}

func TestController_StopWhenIdle(t *testing.T) {
	f := newFixture()
	sess, err := f.ctrl.Stop(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, sess)
	assert.Empty(t, f.sessions.createdSessions())
	assert.Zero(t, f.tasks.updateCount())
}

func TestController_StopReleasesCamera(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.ctrl.Start(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, res.Warning)
	assert.True(t, f.sampler.Active())

	_, err = f.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, f.sampler.Active())
	acquired, released, held := f.camera.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.False(t, held)
}

func TestController_CameraUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.camera.acquireErr = errors.New("no device")

	res, err := f.ctrl.Start(ctx, "T1")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Warning, ErrCameraUnavailable)
	snap := f.ctrl.Snapshot()
	assert.True(t, snap.Running)
	assert.False(t, snap.Sampling)

	sess, err := f.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Zero(t, f.verifier.callCount())
	assert.Equal(t, task.StatusTodo, f.tasks.status("T1"))
}

func TestController_RecordFailureStillRestores(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.ctrl.Start(ctx, "T1")
	require.NoError(t, err)

	f.sessions.createErr = errStore
	sess, err := f.ctrl.Stop(ctx)
	assert.ErrorIs(t, err, errStore)
	assert.Nil(t, sess)
	assert.Equal(t, task.StatusTodo, f.tasks.status("T1"))
	assert.False(t, f.ctrl.Snapshot().Running)
	_, _, held := f.camera.counts()
	assert.False(t, held)

	// a new session can start right away
	_, err = f.ctrl.Start(ctx, "T2")
	require.NoError(t, err)
	f.sessions.createErr = nil
	_, err = f.ctrl.Stop(ctx)
	require.NoError(t, err)
}

func TestController_RestoreFailureJoined(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.ctrl.Start(ctx, "T1")
	require.NoError(t, err)

	f.tasks.mu.Lock()
	f.tasks.updateErr = errStore
	f.tasks.mu.Unlock()
	sess, err := f.ctrl.Stop(ctx)
	assert.ErrorIs(t, err, errStore)
	assert.NotNil(t, sess)
	assert.Len(t, f.sessions.createdSessions(), 1)
	assert.False(t, f.ctrl.Snapshot().Running)
}

func TestController_MarkComplete(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		taskID  string
		wantErr error
	}{
		{name: "todo", taskID: "T1"},
		{name: "completed", taskID: "T3", wantErr: ErrInvalidTransition},
		{name: "verified", taskID: "T4", wantErr: ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			before := f.tasks.status(tt.taskID)
			got, err := f.ctrl.MarkComplete(ctx, tt.taskID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, f.tasks.status(tt.taskID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, task.StatusCompleted, got.Status)
		})
	}

	t.Run("stale inprogress", func(t *testing.T) {
		f := newFixture()
		f.tasks.tasks["T2"].Status = task.StatusInProgress
		got, err := f.ctrl.MarkComplete(ctx, "T2")
		require.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, got.Status)
	})

	t.Run("running task", func(t *testing.T) {
		f := newFixture()
		_, err := f.ctrl.Start(ctx, "T1")
		require.NoError(t, err)
		_, err = f.ctrl.MarkComplete(ctx, "T1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, task.StatusInProgress, f.tasks.status("T1"))

		// other tasks may still be completed
		_, err = f.ctrl.MarkComplete(ctx, "T2")
		assert.NoError(t, err)
		_, err = f.ctrl.Stop(ctx)
		require.NoError(t, err)
	})
}

func TestController_Verify(t *testing.T) {
	ctx := context.Background()
	for id, want := range map[string]error{
		"T1": ErrInvalidTransition,
		"T3": nil,
		"T4": ErrInvalidTransition,
	} {
		t.Run(id, func(t *testing.T) {
			f := newFixture()
			got, err := f.ctrl.Verify(ctx, id)
			if want != nil {
				assert.ErrorIs(t, err, want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, task.StatusVerified, got.Status)
		})
	}
}
