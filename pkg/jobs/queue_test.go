package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	require.Error(t, q.Enqueue(Job{ID: "early"}))

	q.Start(context.Background())
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "audit"}))
	}
	q.Stop()

	assert.EqualValues(t, 5, atomic.LoadInt32(&processed))
	assert.Zero(t, q.Pending())
	require.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var attempts int32
	var dropped []Job
	var mu sync.Mutex
	done := make(chan struct{})

	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnDrop: func(job Job, err error) {
			mu.Lock()
			dropped = append(dropped, job)
			mu.Unlock()
			close(done)
		},
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "j1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never dropped")
	}
	q.Stop()

	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, "j1", dropped[0].ID)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	// Wait for the worker to pick up the first job so the buffer is empty again.
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	assert.Error(t, q.Enqueue(Job{ID: "c"}))

	close(block)
	q.Stop()
	assert.Zero(t, q.Pending())
}

func TestQueueBackoffDoublesAndCaps(t *testing.T) {
	q := NewQueue("backoff", func(context.Context, Job) error { return nil }, QueueConfig{RetryDelay: 500 * time.Millisecond})

	assert.Equal(t, 500*time.Millisecond, q.backoff(1))
	assert.Equal(t, time.Second, q.backoff(2))
	assert.Equal(t, 4*time.Second, q.backoff(4))
	assert.Equal(t, maxBackoff, q.backoff(20))
}

func TestQueueEnqueueRacingStopNeverLosesJobs(t *testing.T) {
	for round := 0; round < 50; round++ {
		var processed int32
		q := NewQueue("race", func(ctx context.Context, job Job) error {
			atomic.AddInt32(&processed, 1)
			return nil
		}, QueueConfig{Workers: 2, BufferSize: 64})
		q.Start(context.Background())

		var accepted int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 4; j++ {
					if q.Enqueue(Job{ID: "job"}) == nil {
						atomic.AddInt32(&accepted, 1)
					}
				}
			}()
		}
		q.Stop()
		wg.Wait()

		require.Equal(t, atomic.LoadInt32(&accepted), atomic.LoadInt32(&processed), "round %d", round)
		assert.Zero(t, q.Pending())
	}
}
