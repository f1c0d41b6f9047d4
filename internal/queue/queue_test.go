package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleClientRoundTrip(t *testing.T) {
	q := New()
	c := NewClient(4)

	c.Wait(q)
	c.Exit(q)

	// A second independent acquire must succeed without blocking forever.
	done := make(chan struct{})
	go func() {
		c.Wait(q)
		c.Exit(q)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed")
	}
}

func TestTwoClientsMutualExclusion(t *testing.T) {
	q := New()
	a := NewClient(4)
	b := NewClient(4)

	var inside int32
	var violations int32
	var wg sync.WaitGroup

	run := func(c *Client) {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.Wait(q)
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			c.Exit(q)
		}
	}

	wg.Add(2)
	go run(a)
	go run(b)
	wg.Wait()

	assert.Zero(t, violations)
}

// TestQueueFairness exercises the S2 scenario: three clients each acquire,
// record a monotonic order number, sleep, then release, a hundred times
// apiece, synchronized to start together. Mutual exclusion must hold for
// all 300 completions.
func TestQueueFairness(t *testing.T) {
	q := New()
	const rounds = 100
	clients := []*Client{NewClient(8), NewClient(8), NewClient(8)}

	var orderCounter int64
	var completions int64
	var inside int32
	var violations int32

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(clients))

	for _, c := range clients {
		c := c
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < rounds; i++ {
				c.Wait(q)
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.AddInt32(&violations, 1)
				}
				atomic.AddInt64(&orderCounter, 1)
				time.Sleep(10 * time.Microsecond)
				atomic.AddInt32(&inside, -1)
				c.Exit(q)
				atomic.AddInt64(&completions, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Zero(t, violations, "at most one waiter may own the queue at a time")
	assert.EqualValues(t, len(clients)*rounds, completions)
}

// TestQueueReentrance exercises the S3 scenario: one client waits on q1,
// q2, q1, q2, q1 then exits in the same order. At the conclusion all
// waiters must be idle, both queues' tails must be nil, and nestedDepth
// must return to zero.
func TestQueueReentrance(t *testing.T) {
	q1 := New()
	q2 := New()
	c := NewClient(8)

	c.Wait(q1)
	c.Wait(q2)
	c.Wait(q1)
	c.Wait(q2)
	c.Wait(q1)

	require.Equal(t, uint32(5), c.nestedDepth)

	c.Exit(q1)
	c.Exit(q2)
	c.Exit(q1)
	c.Exit(q2)
	c.Exit(q1)

	assert.Zero(t, c.nestedDepth)
	assert.Nil(t, q1.tailWaiter.Load())
	assert.Nil(t, q2.tailWaiter.Load())

	it := c.waiters.Iterator()
	for {
		w, ok := it.Next()
		if !ok {
			break
		}
		assert.Equal(t, idle, w.status)
	}
}
