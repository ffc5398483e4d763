//go:build !linux

package parfor

import "time"

// threadCPUTime is not available on this platform; bundles report zero CPU.
func threadCPUTime() time.Duration { return 0 }
