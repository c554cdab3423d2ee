package config

import "runtime"

// ClampThreads bounds a requested pool size to NumCPU+2 so low-core machines are not
// oversubscribed while network waits still overlap. The result is never below 1.
func ClampThreads(requested int) int {
	return clampThreads(requested, runtime.NumCPU())
}

func clampThreads(requested, cpus int) int {
	limit := cpus + 2
	if requested > limit {
		requested = limit
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}
