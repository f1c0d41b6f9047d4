package config_test

import (
	"flag"
	"testing"

	"github.com/alphaharrius/veil-fabric/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	c := config.Default()
	assert.Equal(t, uint64(config.DefaultMaxHeapBytes), c.MaxHeapBytes)
	assert.Equal(t, config.DefaultArenaPoolBytes, c.ArenaPoolBytes)
	assert.Equal(t, config.DefaultTypedArenaPoolCount, c.TypedArenaPoolCount)
	assert.Equal(t, config.DefaultQueueSpinRounds, c.QueueSpinRounds)
	assert.Equal(t, config.DefaultPauseWaitMS, c.PauseWaitMS)
	assert.Equal(t, config.DefaultMetricsAddr, c.MetricsAddr)
}

func TestFlagSetOverridesFromFlag(t *testing.T) {
	c := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.FlagSet(fs)

	require.NoError(t, fs.Parse([]string{"--pause-wait-ms=250", "--jaeger-endpoint=http://collector:14268/api/traces"}))
	assert.Equal(t, 250, c.PauseWaitMS)
	assert.Equal(t, "http://collector:14268/api/traces", c.JaegerEndpoint)
}

func TestFlagSetSeedsFromEnvironment(t *testing.T) {
	t.Setenv("FABRIC_QUEUE_SPIN_ROUNDS", "7")
	t.Setenv("FABRIC_METRICS_ADDR", ":9999")

	c := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.FlagSet(fs)
	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, 7, c.QueueSpinRounds)
	assert.Equal(t, ":9999", c.MetricsAddr)
}

func TestFlagTakesPrecedenceOverEnvironment(t *testing.T) {
	t.Setenv("FABRIC_PAUSE_WAIT_MS", "9")

	c := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.FlagSet(fs)
	require.NoError(t, fs.Parse([]string{"--pause-wait-ms=42"}))

	assert.Equal(t, 42, c.PauseWaitMS)
}

func TestMalformedEnvironmentValueFallsBackToDefault(t *testing.T) {
	t.Setenv("FABRIC_MAX_HEAP_BYTES", "not-a-number")

	c := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.FlagSet(fs)
	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, uint64(config.DefaultMaxHeapBytes), c.MaxHeapBytes)
}
