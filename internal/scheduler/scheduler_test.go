package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Timezones(t *testing.T) {
	s, err := New("America/Los_Angeles")
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", s.location.String())

	s, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "UTC", s.location.String())

	_, err = New("Invalid/Zone")
	assert.Error(t, err)
}

func TestSchedule_InvalidExpression(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	assert.Error(t, s.Schedule("not a cron", func(context.Context) {}))
	assert.Error(t, s.Schedule("0 * * * *", nil))
	assert.True(t, s.Next().IsZero())
}

func TestSchedule_ReplacesEntry(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	require.NoError(t, s.Schedule("0 0 1 1 *", func(context.Context) {}))
	require.NoError(t, s.Schedule("0 */6 * * *", func(context.Context) {}))

	assert.Len(t, s.cron.Entries(), 1)
	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 0, next.Hour()%6)
	assert.Equal(t, 0, next.Minute())
}

func TestSchedule_FailedReplaceKeepsOldEntry(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	require.NoError(t, s.Schedule("0 0 * * *", func(context.Context) {}))
	assert.Error(t, s.Schedule("bogus", func(context.Context) {}))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	var runs atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Schedule("@every 1s", func(ctx context.Context) {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}))
	s.Start()

	time.Sleep(3500 * time.Millisecond)
	close(release)
	s.Stop()

	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_StopCancelsTask(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	started := make(chan struct{}, 1)
	cancelled := make(chan struct{})
	require.NoError(t, s.Schedule("@every 1s", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
			return
		}
		<-ctx.Done()
		close(cancelled)
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("task never started")
	}
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
}
