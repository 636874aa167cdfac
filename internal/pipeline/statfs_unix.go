//go:build unix

package pipeline

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// LocalDisk returns the free-bytes signal for the local filesystem.
func LocalDisk() DiskFree {
	return statfsDisk{}
}

type statfsDisk struct{}

// FreeBytes reports the space available to unprivileged writers on the
// filesystem containing path.
func (statfsDisk) FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
