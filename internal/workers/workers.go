package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the number of workers to use for a task type.
// GOMAXPROCS reflects container CPU limits on Go 1.19+, so sizing from it
// behaves correctly in constrained environments.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (decode + resize)
//   - 2.0 for I/O-bound tasks
//
// limit caps the result; 0 means no cap. The PHOTOSPHERE_WORKERS
// environment variable overrides the computed value.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("PHOTOSPHERE_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	count := int(float64(available) * multiplier)
	if count < 1 {
		count = 1
	}
	if limit > 0 && count > limit {
		count = limit
	}

	return count
}

// ForCPU returns the worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
