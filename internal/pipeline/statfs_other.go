//go:build !unix

package pipeline

import "math"

// LocalDisk returns the free-bytes signal for the local filesystem. On
// platforms without statfs the guard is effectively disabled.
func LocalDisk() DiskFree {
	return DiskFreeFunc(func(string) (uint64, error) {
		return math.MaxUint64, nil
	})
}
