// Package permissions reports and requests capture access for the
// microphone and the camera. Device managers never call it; the tray
// checks it before showing input and camera devices.
package permissions

// Kind is the capture device class a permission covers.
type Kind int

const (
	Microphone Kind = iota
	Camera
)

func (k Kind) String() string {
	if k == Camera {
		return "camera"
	}
	return "microphone"
}

// Status mirrors the platform authorization states.
type Status int

const (
	NotDetermined Status = 0
	Restricted    Status = 1
	Denied        Status = 2
	Authorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	}
	return "not-determined"
}

// Gate is the permission boundary the tray talks to.
type Gate interface {
	Status(kind Kind) Status
	IsAuthorized(kind Kind) bool
	// RequestAccess shows the system prompt if needed. cb runs on an
	// arbitrary thread once the user has answered.
	RequestAccess(kind Kind, cb func(granted bool))
	// OpenSettings opens the privacy pane of the system settings.
	OpenSettings() error
}

// IsDenied reports whether access was refused and can only be granted
// from the system settings.
func IsDenied(g Gate, kind Kind) bool {
	s := g.Status(kind)
	return s == Denied || s == Restricted
}

// Static is a Gate with fixed answers, used where the platform has no
// permission model and in tests.
type Static map[Kind]Status

func (s Static) Status(kind Kind) Status {
	if st, ok := s[kind]; ok {
		return st
	}
	return Authorized
}

func (s Static) IsAuthorized(kind Kind) bool {
	return s.Status(kind) == Authorized
}

func (s Static) RequestAccess(kind Kind, cb func(granted bool)) {
	if cb != nil {
		cb(s.IsAuthorized(kind))
	}
}

func (s Static) OpenSettings() error {
	return nil
}
