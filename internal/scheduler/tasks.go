package scheduler

// startServiceTask binds a Service to an idle worker and hosts it. Grounded
// on original_source/fabric/src/threading/scheduler.{hpp,cpp}'s
// Scheduler::StartServiceTask.
type startServiceTask struct {
	service Service
}

// StartService schedules service to run on the next idle worker and
// returns the ScheduledTask the caller can wait on for the binding itself
// (not the service's completion, which the service signals on its own
// terms).
func (s *Scheduler) StartService(service Service) *ScheduledTask {
	st := s.AddTask(&startServiceTask{service: service})
	s.NotifyAddedTask()
	return st
}

func (t *startServiceTask) Run(s *Scheduler) {
	w := s.idleWorker()
	w.idle.Store(false)
	w.host(s, t.service)
}

// threadReturnTask is the realtime task a worker posts to itself when its
// hosted service's Run method returns, so the scheduler thread (and only
// the scheduler thread) joins the worker's OS thread and marks it idle
// again. Grounded on the source's Scheduler::ThreadReturnTask.
type threadReturnTask struct {
	worker *Worker
}

func (t *threadReturnTask) Run(s *Scheduler) {
	if t.worker.thread != nil {
		t.worker.thread.Join()
	}
	t.worker.joinNegotiated = true
	t.worker.idle.Store(true)
}
