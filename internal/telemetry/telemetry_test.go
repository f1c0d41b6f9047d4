package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alphaharrius/veil-fabric/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ShutdownTracing before any successful InitTracing call must be a no-op:
// fabricd keeps running when InitTracing fails and still calls
// ShutdownTracing on its way out.
func TestShutdownTracingWithoutInitIsNoop(t *testing.T) {
	assert.NoError(t, telemetry.ShutdownTracing(context.Background()))
}

func TestTracerReturnsUsableTracer(t *testing.T) {
	tr := telemetry.Tracer("scheduler")
	require.NotNil(t, tr)
	_, span := tr.Start(context.Background(), "test-span")
	require.NotNil(t, span)
	span.End()
}

func TestNewMetricsRegistersEveryCollector(t *testing.T) {
	m := telemetry.NewMetrics()

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"fabric_heap_mapped_bytes",
		"fabric_heap_overflow_total",
		"fabric_allocator_allocate_total",
		"fabric_workers_idle",
		"fabric_workers_busy",
		"fabric_tasks_run_total",
	} {
		assert.True(t, names[want], "expected %s to be registered", want)
	}
}

func TestHandlerServesRegisteredValues(t *testing.T) {
	m := telemetry.NewMetrics()
	m.TasksRunTotal.Add(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fabric_tasks_run_total 3")
}

func TestAttrHelpers(t *testing.T) {
	s := telemetry.String("task.diagnostic_id", "abc-123")
	assert.Equal(t, "task.diagnostic_id", string(s.Key))
	assert.Equal(t, "abc-123", s.Value.AsString())

	i := telemetry.Int64("worker.count", 4)
	assert.Equal(t, "worker.count", string(i.Key))
	assert.Equal(t, int64(4), i.Value.AsInt64())
}
