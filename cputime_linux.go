package parfor

import (
	"time"

	"golang.org/x/sys/unix"
)

// threadCPUTime returns the user+system CPU time of the calling OS thread.
// Workers lock their goroutine to a thread, so the delta across a bundle is
// the CPU the bundle consumed.
func threadCPUTime() time.Duration {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		return 0
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
}
