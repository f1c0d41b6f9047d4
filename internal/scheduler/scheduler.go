// Package scheduler implements the fabric core's single-threaded task
// loop: the serialization point for every worker-lifecycle event (spawn,
// pause, resume, interrupt, termination) so that these events never race
// against one another.
//
// Grounded on
// original_source/fabric/src/threading/scheduler.{hpp,cpp}: a circular,
// doubly-linked task ring with current_task as cursor, an action mutex
// protecting ring mutation and the paused/terminate_requested flags, and
// an idle condition variable the scheduler blocks on whenever the ring
// empties out.
package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/alphaharrius/veil-fabric/internal/arena"
	"github.com/alphaharrius/veil-fabric/internal/platform"
	"github.com/alphaharrius/veil-fabric/internal/queue"
	"github.com/alphaharrius/veil-fabric/internal/telemetry"
)

// DefaultWorkerRegionCapacity is the default number of Workers per arena
// region, matching the typed_arena_pool_count tunable's default.
const DefaultWorkerRegionCapacity = 64

// DefaultPauseWaitMS bounds how long Pause/Resume block on a worker's
// handshake condvar waiting for its acknowledgement before giving up,
// matching the pause_wait_ms tunable's default.
const DefaultPauseWaitMS = 60000

// DefaultWorkerArenaPoolBytes sizes each Worker's scratch byte-Arena when
// no arena_pool_bytes override reaches NewWithTunables, matching the
// arena_pool_bytes tunable's default.
const DefaultWorkerArenaPoolBytes = arena.DefaultPoolSize

// Scheduler owns the worker pool and the task ring. Start must be called
// from the thread meant to host the scheduler loop for the lifetime of
// the process (or until Terminate); it does not return until termination.
type Scheduler struct {
	actionMu platform.Mutex
	idleCVP  *platform.ConditionVariable

	paused              bool
	terminateRequested  bool
	currentTask         *ScheduledTask

	workers         *arena.Typed[Worker]
	pauseWaitMS     int
	queueSpinRounds int
	arenaPoolBytes  int

	metrics *telemetry.Metrics
}

// SetMetrics attaches a Metrics instance the task loop reports
// tasks-run/idle/busy-worker counts to. A nil (the default) skips
// reporting entirely.
func (s *Scheduler) SetMetrics(metrics *telemetry.Metrics) { s.metrics = metrics }

// New returns a Scheduler whose worker arena allocates workerRegionCapacity
// Workers per region, using DefaultPauseWaitMS for Pause/Resume's
// handshake-wait bound, queue.DefaultSpinRounds for each worker's
// QueueClient, and DefaultWorkerArenaPoolBytes for each worker's scratch
// Arena.
func New(workerRegionCapacity int) *Scheduler {
	return NewWithTunables(workerRegionCapacity, DefaultPauseWaitMS, queue.DefaultSpinRounds, DefaultWorkerArenaPoolBytes)
}

// NewWithTunables is New with explicit pause/resume handshake-wait,
// queue-client CAS-spin, and worker-scratch-arena region-byte-size bounds,
// wired to the pause_wait_ms, queue_spin_rounds, and arena_pool_bytes
// tunables by internal/runtime.
func NewWithTunables(workerRegionCapacity, pauseWaitMS, queueSpinRounds, arenaPoolBytes int) *Scheduler {
	if workerRegionCapacity <= 0 {
		workerRegionCapacity = DefaultWorkerRegionCapacity
	}
	if pauseWaitMS <= 0 {
		pauseWaitMS = DefaultPauseWaitMS
	}
	if queueSpinRounds <= 0 {
		queueSpinRounds = queue.DefaultSpinRounds
	}
	if arenaPoolBytes <= 0 {
		arenaPoolBytes = DefaultWorkerArenaPoolBytes
	}
	s := &Scheduler{
		paused:          true,
		workers:         arena.NewTyped[Worker](workerRegionCapacity),
		pauseWaitMS:     pauseWaitMS,
		queueSpinRounds: queueSpinRounds,
		arenaPoolBytes:  arenaPoolBytes,
	}
	return s
}

func (s *Scheduler) idleCV() *platform.ConditionVariable {
	if s.idleCVP == nil {
		s.idleCVP = platform.NewConditionVariable(&s.actionMu)
	}
	return s.idleCVP
}

// AddTask inserts t as the left-neighbor of the current task (FIFO: it
// will run after every task already in the ring). The caller retains
// ownership and may call WaitForCompletion on the returned ScheduledTask.
func (s *Scheduler) AddTask(t Task) *ScheduledTask {
	st := newScheduledTask(t)
	s.addTaskLocked(st, false)
	return st
}

// AddRealtimeTask inserts t as the right-neighbor of the current task
// (LIFO-promoted: it runs right after the task at the cursor, ahead of
// every other task already queued).
func (s *Scheduler) AddRealtimeTask(t Task) *ScheduledTask {
	st := newScheduledTask(t)
	s.addTaskLocked(st, true)
	return st
}

func (s *Scheduler) addTaskLocked(st *ScheduledTask, realtime bool) {
	s.actionMu.Lock()
	if s.terminateRequested {
		// A terminating scheduler accepts no new tasks.
		s.actionMu.Unlock()
		return
	}
	if s.currentTask == nil {
		s.currentTask = st
	} else if realtime {
		s.currentTask.connectNext(st)
	} else {
		s.currentTask.connectLast(st)
	}
	s.actionMu.Unlock()
}

// postThreadReturn is the scheduler-owned realtime task a worker posts to
// itself just before its hosted service's goroutine ends; ownership is the
// scheduler's from the moment it's created (callerOwned is cleared at
// construction), since nothing but the scheduler ever sees this task.
func (s *Scheduler) postThreadReturn(w *Worker) {
	st := newScheduledTask(&threadReturnTask{worker: w})
	st.callerOwned = false
	s.addTaskLocked(st, true)
	s.NotifyAddedTask()
}

// NotifyAddedTask wakes the scheduler if it is currently paused waiting on
// an empty ring. Spins notifying and yielding until the paused flag is
// observed false, guarding against the scheduler not yet having reached
// its wait call.
func (s *Scheduler) NotifyAddedTask() {
	s.actionMu.Lock()
	for s.paused {
		s.idleCV().NotifyAll()
		s.actionMu.Unlock()
		platform.Yield()
		s.actionMu.Lock()
	}
	s.actionMu.Unlock()
}

// Terminate requests that the scheduler's task loop stop at the next
// iteration boundary and run its shutdown finalization. Start returns once
// finalization completes.
func (s *Scheduler) Terminate() {
	s.actionMu.Lock()
	s.terminateRequested = true
	s.actionMu.Unlock()
	s.NotifyAddedTask()
}

// Start runs the scheduler's task loop on the calling goroutine. It does
// not return until Terminate has been called and finalization completes.
func (s *Scheduler) Start() {
	for {
		s.actionMu.Lock()

		if s.terminateRequested {
			// The loop never waits on idleCV again, so NotifyAddedTask must
			// not keep spinning on the paused flag.
			s.paused = false
			s.actionMu.Unlock()
			s.finalizationOnTermination()
			return
		}

		if s.currentTask == nil {
			s.paused = true
			s.idleCV().Wait()
			s.paused = false
			s.actionMu.Unlock()
			continue
		}

		var picked *ScheduledTask
		if s.currentTask.next == s.currentTask {
			picked = s.currentTask
			s.currentTask = nil
		} else {
			picked = s.currentTask
			s.currentTask = s.currentTask.next
		}
		s.actionMu.Unlock()

		s.runTask(picked)
		picked.disconnect()

		picked.doneMu.Lock()
		picked.completed = true
		if picked.requesterWaiting {
			picked.doneCV().NotifyAll()
		}
		picked.doneMu.Unlock()
		// picked.callerOwned controls manual ownership semantics only;
		// Go's garbage collector reclaims the node once unreferenced
		// either way.
	}
}

// runTask runs picked's Task under a trace span tagged with its
// diagnostic ID, then reports task-loop throughput and worker occupancy to
// whatever Metrics the scheduler was given via SetMetrics.
func (s *Scheduler) runTask(picked *ScheduledTask) {
	_, span := telemetry.Tracer("scheduler").Start(context.Background(), "scheduler.run_task",
		trace.WithAttributes(telemetry.String("task.diagnostic_id", picked.DiagnosticID())))
	defer span.End()

	picked.task.Run(s)

	if s.metrics == nil {
		return
	}
	s.metrics.TasksRunTotal.Inc()

	idle, busy := 0, 0
	it := s.workers.Iterator()
	for {
		w, ok := it.Next()
		if !ok {
			break
		}
		if w.IsIdle() {
			idle++
		} else {
			busy++
		}
	}
	s.metrics.WorkersIdle.Set(float64(idle))
	s.metrics.WorkersBusy.Set(float64(busy))
}

// idleWorker returns an idle Worker from the pool, allocating a new one if
// none is currently idle. Workers are never freed individually; they are
// reused for the lifetime of the scheduler.
func (s *Scheduler) idleWorker() *Worker {
	it := s.workers.Iterator()
	for {
		w, ok := it.Next()
		if !ok {
			break
		}
		if w.IsIdle() {
			return w
		}
	}
	w := s.workers.Allocate()
	initWorker(w, s.queueSpinRounds, s.arenaPoolBytes)
	return w
}

// Pause requests that w suspend at its next cooperative checkpoint and
// blocks on w's pause handshake condvar until it has acknowledged, giving
// up after pauseWaitMS has elapsed. A no-op on an idle or already-paused
// worker.
func (s *Scheduler) Pause(w *Worker) {
	if w.IsIdle() {
		return
	}
	if !w.pauseHandshake.Tick() {
		return
	}
	w.pauseHandshake.WaitForTick(time.Duration(s.pauseWaitMS) * time.Millisecond)
}

// Resume requests that a paused worker continue and blocks on w's resume
// handshake condvar until it has acknowledged, giving up after pauseWaitMS
// has elapsed. A no-op on a worker that is not currently paused.
func (s *Scheduler) Resume(w *Worker) {
	if !w.resumeHandshake.Tick() {
		return
	}
	w.resumeHandshake.WaitForTick(time.Duration(s.pauseWaitMS) * time.Millisecond)
}

// finalizationOnTermination implements the shutdown contract the source
// left empty (Scheduler::finalization_on_termination is a TODO there):
// interrupt and join every non-idle worker, then release the worker
// arena. No new tasks are accepted once Terminate has been called:
// terminateRequested is only ever set true, addTaskLocked drops any task
// added after that, and the task ring is no longer consulted.
func (s *Scheduler) finalizationOnTermination() {
	it := s.workers.Iterator()
	for {
		w, ok := it.Next()
		if !ok {
			break
		}
		if w.IsIdle() {
			continue
		}
		w.Interrupt()
		if w.thread != nil {
			w.thread.Join()
		}
		w.idle.Store(true)
	}
	s.workers.FreeAll()
}
