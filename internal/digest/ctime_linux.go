//go:build linux

package digest

import (
	"io/fs"
	"syscall"
)

// ctimeNanos extracts the inode change time from a os.FileInfo on Linux. It
// returns 0 if the underlying Sys() value isn't the expected type (e.g. on a
// fake filesystem used in tests).
func ctimeNanos(info fs.FileInfo) int64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ctim.Sec*1e9 + st.Ctim.Nsec
	}
	return 0
}
