// Package config loads the fabric core's runtime tunables: a small,
// fixed set of values constructed once at startup and passed by
// reference thereafter, per spec.md §9's REDESIGN FLAGS note on the
// original's mutable global config ("constructed once at Runtime::new
// and passed by reference" rather than read from globals scattered
// across the codebase).
//
// Grounded on abiolaogu-MinIO/cmd/server/main.go's constant block
// (DefaultPort, MaxConcurrentReqs, ...), restructured here into a real
// struct populated from flags whose defaults come from environment
// variables when set (an explicit flag wins over the environment),
// since the teacher itself never reads environment variables for these
// values — stdlib flag + os.Getenv stays the bridge because no pack
// example carries a config/env library (no viper, no envconfig appear
// in any retrieved go.mod).
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config is the fabric core's full set of runtime tunables.
type Config struct {
	// MaxHeapBytes is the heap's page-rounded mapped-byte cap.
	MaxHeapBytes uint64
	// ArenaPoolBytes sizes each region of the byte-oriented Arena.
	ArenaPoolBytes int
	// TypedArenaPoolCount sizes each region of a Typed arena in elements.
	TypedArenaPoolCount int
	// QueueSpinRounds bounds an OrderedQueue Waiter's CAS spin before it
	// falls back to blocking.
	QueueSpinRounds int
	// PauseWaitMS bounds how long Scheduler.Pause/Resume block on a
	// worker's handshake condvar waiting for its acknowledgement.
	PauseWaitMS int

	// JaegerEndpoint is where telemetry spans are exported.
	JaegerEndpoint string
	// MetricsAddr is the listen address for the /metrics HTTP endpoint.
	MetricsAddr string
}

// Default tunable values, matching spec.md §6.
const (
	DefaultMaxHeapBytes        = 16 << 20 // 16 MiB, page-aligned
	DefaultArenaPoolBytes      = 4096
	DefaultTypedArenaPoolCount = 64
	DefaultQueueSpinRounds     = 32
	DefaultPauseWaitMS         = 60000
	DefaultMetricsAddr         = ":9001"
)

// Default returns a Config populated with spec.md §6's default values.
func Default() *Config {
	return &Config{
		MaxHeapBytes:        DefaultMaxHeapBytes,
		ArenaPoolBytes:      DefaultArenaPoolBytes,
		TypedArenaPoolCount: DefaultTypedArenaPoolCount,
		QueueSpinRounds:     DefaultQueueSpinRounds,
		PauseWaitMS:         DefaultPauseWaitMS,
		MetricsAddr:         DefaultMetricsAddr,
	}
}

// FlagSet registers every tunable as a flag on fs, seeded with whatever
// environment-variable override is present, falling back to c's current
// value. Call Parse on fs, then read back from c — the flag package writes
// straight into c's fields.
func (c *Config) FlagSet(fs *flag.FlagSet) {
	fs.Uint64Var(&c.MaxHeapBytes, "max-heap-bytes", envUint64("FABRIC_MAX_HEAP_BYTES", c.MaxHeapBytes), "maximum mapped heap size in bytes")
	fs.IntVar(&c.ArenaPoolBytes, "arena-pool-bytes", envInt("FABRIC_ARENA_POOL_BYTES", c.ArenaPoolBytes), "byte-arena region size")
	fs.IntVar(&c.TypedArenaPoolCount, "typed-arena-pool-count", envInt("FABRIC_TYPED_ARENA_POOL_COUNT", c.TypedArenaPoolCount), "typed-arena region capacity, in elements")
	fs.IntVar(&c.QueueSpinRounds, "queue-spin-rounds", envInt("FABRIC_QUEUE_SPIN_ROUNDS", c.QueueSpinRounds), "ordered-queue waiter CAS spin rounds before blocking")
	fs.IntVar(&c.PauseWaitMS, "pause-wait-ms", envInt("FABRIC_PAUSE_WAIT_MS", c.PauseWaitMS), "scheduler pause/resume handshake wait bound, in milliseconds")
	fs.StringVar(&c.JaegerEndpoint, "jaeger-endpoint", envString("JAEGER_ENDPOINT", c.JaegerEndpoint), "jaeger collector endpoint for trace export")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", envString("FABRIC_METRICS_ADDR", c.MetricsAddr), "listen address for the /metrics endpoint")
}

func envUint64(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
