// Package runtime is the fabric core's composition root: one heap
// management instance and one scheduler, constructed together and torn
// down together.
//
// Grounded on original_source/fabric/src/core/runtime.hpp (Runtime owns
// a memory::Management; the distilled spec.md only calls out the CLI
// entry point as out of scope, not this composition) and
// abiolaogu-MinIO/cmd/server/main.go's MinIOServer struct, which glues
// its cache/replication/tenant managers behind one top-level type
// constructed by a single NewX function and torn down by one Shutdown.
package runtime

import (
	"github.com/alphaharrius/veil-fabric/internal/config"
	"github.com/alphaharrius/veil-fabric/internal/diagnostics"
	"github.com/alphaharrius/veil-fabric/internal/heap"
	"github.com/alphaharrius/veil-fabric/internal/heap/bumpalgo"
	"github.com/alphaharrius/veil-fabric/internal/scheduler"
	"github.com/alphaharrius/veil-fabric/internal/telemetry"
)

// Runtime owns the fabric core's heap management and scheduler for the
// lifetime of a process.
type Runtime struct {
	Config    *config.Config
	Heap      *heap.Management
	Scheduler *scheduler.Scheduler
	Metrics   *telemetry.Metrics
}

// New constructs a Runtime from cfg: a heap.Management backed by the
// default bumpalgo algorithm, and a scheduler sized by cfg's tunables.
// The scheduler is not started; call Scheduler.Start once the caller is
// ready to host services.
func New(cfg *config.Config) (*Runtime, error) {
	metrics := telemetry.NewMetrics()

	algo := bumpalgo.New()
	m, err := heap.New(algo, cfg.MaxHeapBytes, nil)
	if err != nil {
		return nil, err
	}
	m.SetMetrics(metrics)
	diagnostics.Banner("heap management ready (cap %d bytes, algorithm %s)", m.MaxHeapSize, algo.Name())

	s := scheduler.NewWithTunables(cfg.TypedArenaPoolCount, cfg.PauseWaitMS, cfg.QueueSpinRounds, cfg.ArenaPoolBytes)
	s.SetMetrics(metrics)
	diagnostics.Banner("scheduler ready (worker region capacity %d)", cfg.TypedArenaPoolCount)

	return &Runtime{
		Config:    cfg,
		Heap:      m,
		Scheduler: s,
		Metrics:   metrics,
	}, nil
}

// RequestStop asynchronously signals the scheduler to stop its task loop
// and run finalization; it returns immediately without waiting for
// Scheduler.Start to return. Intended to be called from a signal handler
// running alongside a blocking Start call.
func (r *Runtime) RequestStop() {
	r.Scheduler.Terminate()
}

// Close tears down the heap management. Call only after Scheduler.Start
// has returned (i.e. after finalization completed), since the scheduler's
// workers may still be acquiring heap allocators until then.
func (r *Runtime) Close() {
	r.Heap.Terminate()
	diagnostics.Banner("runtime shut down")
}
