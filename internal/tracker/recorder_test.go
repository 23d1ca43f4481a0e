package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/pkg/cerr"
)

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	p := &project.Project{ID: "P1", Name: "Apollo"}

	t.Run("duration is exact", func(t *testing.T) {
		sessions := &fakeSessions{}
		r := NewRecorder(sessions)
		got, err := r.Record(ctx, RecordInput{
			UserID:    "U1",
			UserEmail: "w@example.com",
			Project:   p,
			Task:      &task.Task{ID: "T1", Description: "write report"},
			Start:     start,
			Stop:      start.Add(65*time.Second + 432*time.Millisecond),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(65432), got.Duration)
		assert.Equal(t, "T1", got.TaskID)
		assert.Len(t, sessions.createdSessions(), 1)
	})

	t.Run("zero length", func(t *testing.T) {
		sessions := &fakeSessions{}
		got, err := NewRecorder(sessions).Record(ctx, RecordInput{UserID: "U1", Project: p, Start: start, Stop: start})
		require.NoError(t, err)
		assert.Zero(t, got.Duration)
		assert.Empty(t, got.TaskID)
	})

	t.Run("stop before start persists nothing", func(t *testing.T) {
		sessions := &fakeSessions{}
		_, err := NewRecorder(sessions).Record(ctx, RecordInput{UserID: "U1", Project: p, Start: start, Stop: start.Add(-time.Millisecond)})
		assert.ErrorIs(t, err, ErrInvalidInterval)
		assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
		assert.Empty(t, sessions.createdSessions())
	})

	t.Run("store failure propagates", func(t *testing.T) {
		sessions := &fakeSessions{createErr: errStore}
		_, err := NewRecorder(sessions).Record(ctx, RecordInput{UserID: "U1", Project: p, Start: start, Stop: start.Add(time.Second)})
		assert.ErrorIs(t, err, errStore)
	})
}
