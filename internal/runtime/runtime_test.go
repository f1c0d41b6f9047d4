package runtime_test

import (
	"testing"
	"time"

	"github.com/alphaharrius/veil-fabric/internal/config"
	"github.com/alphaharrius/veil-fabric/internal/heap/bumpalgo"
	"github.com/alphaharrius/veil-fabric/internal/platform"
	"github.com/alphaharrius/veil-fabric/internal/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := config.Default()
	c.MaxHeapBytes = 4 * uint64(platform.PageSize())
	c.TypedArenaPoolCount = 4
	return c
}

func TestNewComposesHeapAndScheduler(t *testing.T) {
	rt, err := runtime.New(testConfig())
	require.NoError(t, err)
	require.NotNil(t, rt.Heap)
	require.NotNil(t, rt.Scheduler)
	require.NotNil(t, rt.Metrics)

	al, err := rt.Heap.CreateAllocator()
	require.NoError(t, err)
	_, err = al.Allocate(64)
	assert.NoError(t, err)

	rt.Close()
}

func TestNewRejectsOversizedHeapCap(t *testing.T) {
	c := testConfig()
	c.MaxHeapBytes = bumpalgo.MaxSupportedHeapSize + 1

	_, err := runtime.New(c)
	require.Error(t, err)
}

func TestRequestStopUnblocksStart(t *testing.T) {
	rt, err := runtime.New(testConfig())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		rt.Scheduler.Start()
		close(done)
	}()

	rt.RequestStop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler.Start did not return after RequestStop")
	}

	rt.Close()
}

func TestMetricsReportHeapMappingAfterAllocate(t *testing.T) {
	rt, err := runtime.New(testConfig())
	require.NoError(t, err)
	defer rt.Close()

	al, err := rt.Heap.CreateAllocator()
	require.NoError(t, err)
	_, err = al.Allocate(64)
	require.NoError(t, err)

	families, err := rt.Metrics.Registry.Gather()
	require.NoError(t, err)

	var sawMappedBytes bool
	for _, f := range families {
		if f.GetName() == "fabric_heap_mapped_bytes" {
			sawMappedBytes = true
			require.Len(t, f.Metric, 1)
			assert.Greater(t, f.Metric[0].GetGauge().GetValue(), float64(0))
		}
	}
	assert.True(t, sawMappedBytes)
}
