package audio

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/petems/iotray/internal/hal"
	"github.com/petems/iotray/internal/listener"
	"github.com/rs/zerolog"
)

// Loop is the coordination context commands and refreshes run on.
type Loop interface {
	Do(fn func()) error
	Post(fn func())
}

type Config struct {
	Hardware hal.Hardware
	Loop     Loop
	Logger   zerolog.Logger
}

// Manager owns the published output and input device lists.
//
// Every command writes to hardware, then refreshes and republishes,
// all on the coordination loop. A failed write is logged and not
// returned: the refreshed snapshot shows what the hardware actually did.
type Manager struct {
	hw     hal.Hardware
	codec  hal.Codec
	enum   Enumerator
	loop   Loop
	log    zerolog.Logger
	bridge *listener.Bridge

	snap   atomic.Pointer[Snapshot]
	closed atomic.Bool

	obsMu     sync.Mutex
	observers []func(Snapshot)
}

// New registers the hardware listeners, publishes a first snapshot and
// returns the manager. Close must be called to release the listeners.
func New(cfg Config) (*Manager, error) {
	log := cfg.Logger.With().Str("component", "audio").Logger()
	m := &Manager{
		hw:    cfg.Hardware,
		codec: hal.NewCodec(cfg.Hardware),
		enum:  NewEnumerator(cfg.Hardware, log),
		loop:  cfg.Loop,
		log:   log,
	}
	m.snap.Store(&Snapshot{})

	m.bridge = listener.New(cfg.Loop, m.resync, log)
	if err := m.bridge.Start(m.bindings()...); err != nil {
		return nil, err
	}
	if err := m.loop.Do(m.resync); err != nil {
		m.bridge.Close()
		return nil, err
	}
	return m, nil
}

// bindings subscribes to device-list and per-direction default changes
// on the system object.
func (m *Manager) bindings() []listener.Binding {
	watch := func(name string, key hal.PropertyKey) listener.Binding {
		return listener.Binding{
			Name: name,
			Add: func(cb func()) (func() error, error) {
				tok, err := m.hw.AddListener(hal.SystemObject, key, cb)
				if err != nil {
					return nil, err
				}
				return func() error { return m.hw.RemoveListener(tok) }, nil
			},
		}
	}
	return []listener.Binding{
		watch(listener.DeviceListChanged, hal.DevicesKey()),
		watch(listener.DefaultOutputChanged, hal.DefaultDeviceKey(hal.Output)),
		watch(listener.DefaultInputChanged, hal.DefaultDeviceKey(hal.Input)),
	}
}

// Close releases the hardware listeners. The manager keeps serving its
// last snapshot but ignores further commands.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.bridge.Close()
}

// OnChange registers fn to receive every published snapshot. fn runs on
// the coordination loop and must not issue commands synchronously.
func (m *Manager) OnChange(fn func(Snapshot)) {
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

// Snapshot returns a copy of the published lists.
func (m *Manager) Snapshot() Snapshot {
	return m.snap.Load().clone()
}

func (m *Manager) Outputs() []Device {
	return m.Snapshot().Outputs
}

func (m *Manager) Inputs() []Device {
	return m.Snapshot().Inputs
}

func (m *Manager) Device(dir hal.Direction, id hal.ObjectID) (Device, bool) {
	return m.snap.Load().Find(dir, id)
}

func (m *Manager) DefaultDevice(dir hal.Direction) (Device, bool) {
	return m.snap.Load().Default(dir)
}

// Refresh rebuilds and republishes both lists.
func (m *Manager) Refresh() {
	m.command("refresh", nil)
}

// SetDefault makes id the default device for dir.
func (m *Manager) SetDefault(id hal.ObjectID, dir hal.Direction) {
	m.command("set-default", func() {
		if err := m.codec.WriteObjectID(hal.SystemObject, hal.DefaultDeviceKey(dir), id); err != nil {
			m.log.Warn().Err(err).Uint32("id", uint32(id)).Stringer("direction", dir).Msg("Failed to set default device")
		}
	})
}

// SetVolume sets the main volume of id in dir, clamped to [0,1].
func (m *Manager) SetVolume(dir hal.Direction, id hal.ObjectID, v float32) {
	m.command("set-volume", func() {
		if !m.known(dir, id) {
			return
		}
		if err := m.codec.WriteVolume(id, hal.VolumeKey(dir), v); err != nil {
			m.log.Warn().Err(err).Uint32("id", uint32(id)).Float32("volume", v).Msg("Failed to set volume")
		}
	})
}

// SetMute sets the mute state of id in dir.
func (m *Manager) SetMute(dir hal.Direction, id hal.ObjectID, muted bool) {
	m.command("set-mute", func() {
		if !m.known(dir, id) {
			return
		}
		m.writeMute(dir, id, muted)
	})
}

// ToggleMute inverts the current hardware mute state of id in dir.
func (m *Manager) ToggleMute(dir hal.Direction, id hal.ObjectID) {
	m.command("toggle-mute", func() {
		if !m.known(dir, id) {
			return
		}
		m.writeMute(dir, id, !m.enum.Muted(id, dir))
	})
}

func (m *Manager) writeMute(dir hal.Direction, id hal.ObjectID, muted bool) {
	if err := m.codec.WriteMute(id, hal.MuteKey(dir), muted); err != nil {
		m.log.Warn().Err(err).Uint32("id", uint32(id)).Bool("muted", muted).Msg("Failed to set mute")
	}
}

// known reports whether id is in dir's published list. Volume and mute
// commands for other devices are ignored.
func (m *Manager) known(dir hal.Direction, id hal.ObjectID) bool {
	if _, ok := m.snap.Load().Find(dir, id); ok {
		return true
	}
	m.log.Warn().Uint32("id", uint32(id)).Stringer("direction", dir).Msg("Ignoring command for unknown device")
	return false
}

// command runs write (if any) followed by a refresh on the loop and
// waits for both.
func (m *Manager) command(op string, write func()) {
	if m.closed.Load() {
		m.log.Debug().Str("op", op).Msg("Ignoring command on closed manager")
		return
	}
	err := m.loop.Do(func() {
		if write != nil {
			write()
		}
		m.resync()
	})
	if err != nil {
		m.log.Warn().Err(err).Str("op", op).Msg("Command not run")
	}
}

// resync rebuilds the snapshot and publishes it. It only runs on the loop.
func (m *Manager) resync() {
	next := &Snapshot{
		Outputs: m.enum.Devices(hal.Output),
		Inputs:  m.enum.Devices(hal.Input),
	}
	m.snap.Store(next)
	m.log.Debug().Int("outputs", len(next.Outputs)).Int("inputs", len(next.Inputs)).Msg("Published audio devices")

	m.obsMu.Lock()
	observers := slices.Clone(m.observers)
	m.obsMu.Unlock()
	for _, fn := range observers {
		fn(next.clone())
	}
}
