package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yadunandan004/dblogger/logerr"
)

func TestNewRejectsOutOfRange(t *testing.T) {
	for _, n := range []int{0, -1, 257} {
		_, err := New(n)
		assert.ErrorIs(t, err, logerr.ErrInvalidArgument, "workers=%d", n)
	}
	p, err := New(256)
	require.NoError(t, err)
	p.Stop()
}

func TestRunsEveryTask(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)
	defer p.Stop()

	var n atomic.Int64
	for i := 0; i < 1000; i++ {
		require.NoError(t, p.Submit(func() { n.Add(1) }))
	}
	p.WaitForCompletion()
	assert.Equal(t, int64(1000), n.Load())
	assert.True(t, p.IsQueueEmpty())
	assert.Zero(t, p.Pending())
}

func TestSingleWorkerKeepsOrder(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Stop()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, p.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	p.WaitForCompletion()
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestInFlightCountsAsBusy(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	assert.False(t, p.IsQueueEmpty())
	assert.Equal(t, 1, p.Pending())
	close(release)
	p.WaitForCompletion()
	assert.True(t, p.IsQueueEmpty())
}

func TestStopDiscardsQueued(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	var ran atomic.Bool
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func() { ran.Store(true) }))
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	assert.Equal(t, 5, p.Stop())
	assert.False(t, ran.Load())
	assert.ErrorIs(t, p.Submit(func() {}), ErrStopped)
	assert.Zero(t, p.Stop())
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Stop()

	var ok atomic.Bool
	require.NoError(t, p.Submit(func() { panic("boom") }))
	require.NoError(t, p.Submit(func() { ok.Store(true) }))
	p.WaitForCompletion()
	assert.True(t, ok.Load())
}
