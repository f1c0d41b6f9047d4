package platform

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundUpToPage(t *testing.T) {
	ps := uint64(PageSize())
	assert.Equal(t, ps, RoundUpToPage(1))
	assert.Equal(t, ps, RoundUpToPage(ps))
	assert.Equal(t, 2*ps, RoundUpToPage(ps+1))
}

func TestThreadSpawnJoin(t *testing.T) {
	var ran bool
	th := Spawn(func() { ran = true })
	th.Join()
	assert.True(t, ran)
	assert.Greater(t, th.ID(), uint64(0))
}

func TestThreadJoinWithoutStartPanics(t *testing.T) {
	th := &Thread{}
	assert.Panics(t, func() { th.Join() })
}

func TestConditionVariableWaitNotify(t *testing.T) {
	var mu Mutex
	cv := NewConditionVariable(&mu)

	ready := false
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mu.Lock()
		for !ready {
			cv.Wait()
		}
		mu.Unlock()
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	ready = true
	cv.NotifyAll()
	mu.Unlock()

	wg.Wait()
}

func TestConditionVariableWaitForTimesOut(t *testing.T) {
	var mu Mutex
	cv := NewConditionVariable(&mu)

	mu.Lock()
	timedOut := cv.WaitFor(10 * time.Millisecond)
	mu.Unlock()

	require.True(t, timedOut)
}

func TestConditionVariableWaitForNotified(t *testing.T) {
	var mu Mutex
	cv := NewConditionVariable(&mu)

	done := make(chan bool, 1)
	go func() {
		mu.Lock()
		timedOut := cv.WaitFor(time.Second)
		mu.Unlock()
		done <- timedOut
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	cv.NotifyAll()
	mu.Unlock()

	select {
	case timedOut := <-done:
		assert.False(t, timedOut)
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not observe the notification")
	}
}
