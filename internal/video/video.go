// Package video enumerates video capture devices and tracks the user's
// preferred camera.
//
// There is no system-wide default camera: the preference lives only in
// memory for the life of the process.
package video

// Device is one entry of the published camera list.
type Device struct {
	ID        string // stable across reconnects of the same unit
	Name      string
	Enabled   bool // always true
	IsDefault bool // the user's in-memory preference
	InUse     bool // held by another process
}

// CaptureDevice is what a backend reports for one camera.
type CaptureDevice struct {
	ID    string
	Name  string
	InUse bool
}

// Event is a hardware notification a backend can deliver.
type Event int

const (
	Connected Event = iota
	Disconnected
)

func (e Event) String() string {
	if e == Disconnected {
		return "disconnected"
	}
	return "connected"
}

// Hardware is a platform capture-device subsystem. Subscription
// callbacks may run on any thread.
type Hardware interface {
	Devices() ([]CaptureDevice, error)
	// DefaultDeviceID is the platform's suggested camera, used only to
	// seed the preference.
	DefaultDeviceID() (string, bool)
	Subscribe(ev Event, fn func()) (remove func() error, err error)
}

// Backend is a Hardware owning platform resources.
type Backend interface {
	Hardware
	Name() string
	Close() error
}
