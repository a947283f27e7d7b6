package video

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/petems/iotray/internal/listener"
	"github.com/rs/zerolog"
)

// Loop is the coordination context commands and refreshes run on.
type Loop interface {
	Do(fn func()) error
	Post(fn func())
}

type Config struct {
	Hardware Hardware
	Loop     Loop
	Logger   zerolog.Logger
}

type state struct {
	cameras  []Device
	selected string
}

// Manager owns the published camera list and the preferred camera.
type Manager struct {
	hw     Hardware
	loop   Loop
	log    zerolog.Logger
	bridge *listener.Bridge

	// selected is only touched on the loop.
	selected string

	snap   atomic.Pointer[state]
	closed atomic.Bool

	obsMu     sync.Mutex
	observers []func([]Device)
}

// New subscribes to connect/disconnect notifications and publishes a
// first list. Close must be called to release the subscriptions.
func New(cfg Config) (*Manager, error) {
	m := &Manager{
		hw:   cfg.Hardware,
		loop: cfg.Loop,
		log:  cfg.Logger.With().Str("component", "video").Logger(),
	}
	m.snap.Store(&state{})

	m.bridge = listener.New(cfg.Loop, m.resync, m.log)
	err := m.bridge.Start(
		listener.Binding{Name: listener.VideoDeviceConnected, Add: m.subscriber(Connected)},
		listener.Binding{Name: listener.VideoDeviceDisconnected, Add: m.subscriber(Disconnected)},
	)
	if err != nil {
		return nil, err
	}
	if err := m.loop.Do(m.resync); err != nil {
		m.bridge.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) subscriber(ev Event) func(cb func()) (func() error, error) {
	return func(cb func()) (func() error, error) {
		return m.hw.Subscribe(ev, cb)
	}
}

func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.bridge.Close()
}

// OnChange registers fn to receive every published list. fn runs on the
// coordination loop and must not issue commands synchronously.
func (m *Manager) OnChange(fn func([]Device)) {
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

func (m *Manager) Cameras() []Device {
	return slices.Clone(m.snap.Load().cameras)
}

// SelectedID returns the preferred camera id, which may name a camera
// that is currently disconnected.
func (m *Manager) SelectedID() (string, bool) {
	s := m.snap.Load().selected
	return s, s != ""
}

// Selected returns the preferred camera if it is connected.
func (m *Manager) Selected() (Device, bool) {
	for _, d := range m.snap.Load().cameras {
		if d.IsDefault {
			return d, true
		}
	}
	return Device{}, false
}

func (m *Manager) Refresh() {
	m.command("refresh", nil)
}

// SelectPreferred records id as the preferred camera. Nothing is
// written to hardware.
func (m *Manager) SelectPreferred(id string) {
	m.command("select-camera", func() {
		if !slices.ContainsFunc(m.snap.Load().cameras, func(d Device) bool { return d.ID == id }) {
			m.log.Warn().Str("id", id).Msg("Ignoring selection of unknown camera")
			return
		}
		m.selected = id
		m.log.Info().Str("id", id).Msg("Selected camera")
	})
}

func (m *Manager) command(op string, apply func()) {
	if m.closed.Load() {
		m.log.Debug().Str("op", op).Msg("Ignoring command on closed manager")
		return
	}
	err := m.loop.Do(func() {
		if apply != nil {
			apply()
		}
		m.resync()
	})
	if err != nil {
		m.log.Warn().Err(err).Str("op", op).Msg("Command not run")
	}
}

// resync rebuilds and publishes the camera list. It only runs on the loop.
func (m *Manager) resync() {
	found, err := m.hw.Devices()
	if err != nil {
		m.log.Debug().Err(err).Msg("Failed to list cameras")
		found = nil
	}
	if m.selected == "" {
		if id, ok := m.hw.DefaultDeviceID(); ok {
			m.selected = id
		}
	}

	cameras := make([]Device, 0, len(found))
	for _, d := range found {
		cameras = append(cameras, Device{
			ID:        d.ID,
			Name:      d.Name,
			Enabled:   true,
			IsDefault: d.ID == m.selected,
			InUse:     d.InUse,
		})
	}
	m.snap.Store(&state{cameras: cameras, selected: m.selected})
	m.log.Debug().Int("cameras", len(cameras)).Msg("Published cameras")

	m.obsMu.Lock()
	observers := slices.Clone(m.observers)
	m.obsMu.Unlock()
	for _, fn := range observers {
		fn(slices.Clone(cameras))
	}
}
