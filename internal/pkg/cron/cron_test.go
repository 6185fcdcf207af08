package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

func statusOf(s *Scheduler, name string) ListItem {
	for _, it := range s.List() {
		if it.Name == name {
			return it
		}
	}
	return ListItem{}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := New(nil)
	s.Register(Job{Name: "tick", Interval: 10 * time.Millisecond, Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()

	assert.Equal(t, StatusFulfill, statusOf(s, "tick").Status)
}

func TestSchedulerRunRecordsFailure(t *testing.T) {
	s := New(nil)
	s.Register(Job{Name: "boom", Interval: time.Hour, Fn: func(context.Context) error {
		return errors.New("smtp down")
	}})

	require.NoError(t, s.Run(context.Background(), "boom"))
	s.Wait()

	item := statusOf(s, "boom")
	assert.Equal(t, StatusReject, item.Status)
	assert.Equal(t, "smtp down", item.Message)
	assert.NotNil(t, item.LastRunAt)

	assert.ErrorIs(t, s.Run(context.Background(), "missing"), apperr.ErrNotFound)
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s := New(nil)
	s.Register(Job{Name: "slow", Interval: time.Hour, Fn: func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}})

	require.NoError(t, s.Run(context.Background(), "slow"))
	require.Eventually(t, func() bool { return statusOf(s, "slow").Status == StatusRunning }, time.Second, time.Millisecond)
	s.execute(context.Background(), s.jobs["slow"])
	close(release)
	s.Wait()

	assert.EqualValues(t, 1, runs.Load())
}
