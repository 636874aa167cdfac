package pipeline

// DiskFree reports available storage for the photo data directory. It is
// an external signal: the pipeline only consumes it to refuse writes that
// could never finish processing, it never computes telemetry itself.
type DiskFree interface {
	FreeBytes(path string) (uint64, error)
}

// DiskFreeFunc adapts a function to the DiskFree interface, mostly for
// tests.
type DiskFreeFunc func(path string) (uint64, error)

// FreeBytes implements DiskFree.
func (f DiskFreeFunc) FreeBytes(path string) (uint64, error) {
	return f(path)
}
