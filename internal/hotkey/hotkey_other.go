//go:build (!darwin && !linux) || !cgo

package hotkey

type noopManager struct{}

// New returns a manager that cannot register hotkeys.
func New() (Manager, error) {
	return noopManager{}, nil
}

func (noopManager) Register(accel string, callback func(pressed bool)) error {
	if _, err := ParseAccelerator(accel); err != nil {
		return err
	}
	return ErrUnsupported
}

func (noopManager) Unregister(accel string) error { return nil }

func (noopManager) Close() error { return nil }
