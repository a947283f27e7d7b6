//go:build !linux && (!darwin || !cgo)

package video

// NewBackend returns a backend without cameras: this platform has no supported
// capture API.
func NewBackend() (Backend, error) {
	return NewFake(), nil
}
