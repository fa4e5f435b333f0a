//go:build !linux

package digest

import "io/fs"

// ctimeNanos is unavailable outside Linux through the standard library
// without platform-specific syscalls; callers fall back to (mtime, size)
// for cache invalidation, which still invalidates correctly on any mtime
// or size change.
func ctimeNanos(_ fs.FileInfo) int64 {
	return 0
}
