package tracker

import (
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewClock()
		began := time.Now()
		require.NoError(t, c.Start(nil))
		assert.ErrorIs(t, c.Start(nil), ErrTaskRunning)

		time.Sleep(90 * time.Second)
		assert.Equal(t, 90*time.Second, c.Elapsed())

		start, stop, elapsed := c.Stop()
		assert.WithinDuration(t, began, start, 0)
		assert.WithinDuration(t, began.Add(90*time.Second), stop, 0)
		assert.Equal(t, 90*time.Second, elapsed)
		assert.False(t, c.Running())
		assert.Zero(t, c.Elapsed())

		start, _, elapsed = c.Stop()
		assert.True(t, start.IsZero())
		assert.Zero(t, elapsed)
	})
}
