//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// advise issues best-effort kernel hints: large sequential pass; please
// readahead. Failures are ignored, reads stay correct without the hint.
func advise(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}
