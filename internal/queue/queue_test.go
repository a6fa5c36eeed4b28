package queue

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	q := New(10)
	q.Push("000001")
	q.Push("600519")

	assert.Equal(t, 2, q.Size())

	task, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "000001", task.Code)
	assert.False(t, task.Stop)

	task, ok = q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "600519", task.Code)
}

func TestPopTimeout(t *testing.T) {
	q := New(1)

	start := time.Now()
	_, ok := q.Pop(50 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestStopTaskDistinctFromTimeout(t *testing.T) {
	q := New(2)
	q.PushStop()

	task, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.True(t, task.Stop)
	assert.Empty(t, task.Code)
}

func TestJoinWaitsForAllTaskDone(t *testing.T) {
	const n = 50
	const workers = 4

	q := New(n + workers)
	for i := 0; i < n; i++ {
		q.Push(fmt.Sprintf("%06d", i))
	}

	var done int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, ok := q.Pop(100 * time.Millisecond)
				if !ok || task.Stop {
					return
				}
				atomic.AddInt64(&done, 1)
				q.TaskDone()
			}
		}()
	}

	joined := make(chan struct{})
	go func() {
		q.Join()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(5 * time.Second):
		t.Fatal("Join did not return after all tasks were acknowledged")
	}

	assert.Equal(t, int64(n), atomic.LoadInt64(&done))
	assert.Equal(t, 0, q.Unfinished())

	for w := 0; w < workers; w++ {
		q.PushStop()
	}
	wg.Wait()
}

func TestJoinReturnsImmediatelyWhenEmpty(t *testing.T) {
	q := New(1)

	joined := make(chan struct{})
	go func() {
		q.Join()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join blocked on an empty queue")
	}
}

func TestStopDoesNotReArmJoin(t *testing.T) {
	q := New(4)
	q.Push("000001")

	task, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "000001", task.Code)
	q.TaskDone()

	q.Join()

	// Stop signals pushed after drain must not make Join block again.
	q.PushStop()
	q.PushStop()
	q.Join()
	assert.Equal(t, 2, q.Size())
}
