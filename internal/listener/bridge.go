// Package listener turns asynchronous hardware-change notifications into
// re-synchronizations on the coordination loop.
package listener

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Event kinds a Binding can subscribe to.
const (
	DeviceListChanged       = "device-list-changed"
	DefaultOutputChanged    = "default-output-changed"
	DefaultInputChanged     = "default-input-changed"
	VideoDeviceConnected    = "video-device-connected"
	VideoDeviceDisconnected = "video-device-disconnected"
)

// Binding describes one persistent subscription. Add registers cb with
// the platform and returns the function that removes exactly that
// registration.
type Binding struct {
	Name string
	Add  func(cb func()) (remove func() error, err error)
}

// Poster is the coordination context callbacks are marshaled onto.
type Poster interface {
	Post(fn func())
}

// Stats counts registrations over a Bridge's lifetime.
type Stats struct {
	Registered int
	Removed    int
	Events     int
}

type registration struct {
	name   string
	remove func() error
}

// Bridge owns the registrations of one manager. Its lifecycle is
// Unregistered → Registered → Unregistered: Start once, Close once.
type Bridge struct {
	log    zerolog.Logger
	loop   Poster
	onSync func()

	mu      sync.Mutex
	regs    []*registration
	started bool
	closed  atomic.Bool

	registered int
	removed    int
	events     atomic.Int64
}

// New returns an unregistered bridge that posts onChanged to loop for
// every notification.
func New(loop Poster, onChanged func(), log zerolog.Logger) *Bridge {
	return &Bridge{
		log:    log,
		loop:   loop,
		onSync: onChanged,
	}
}

// Start registers every binding. If one fails, the registrations already
// made are removed before the error is returned.
func (b *Bridge) Start(bindings ...Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return errors.New("listener bridge already started")
	}
	b.started = true

	for _, bnd := range bindings {
		remove, err := bnd.Add(b.notify(bnd.Name))
		if err != nil {
			b.releaseLocked()
			b.closed.Store(true)
			return fmt.Errorf("failed to register %s listener: %w", bnd.Name, err)
		}
		b.regs = append(b.regs, &registration{name: bnd.Name, remove: remove})
		b.registered++
		b.log.Debug().Str("event", bnd.Name).Msg("Registered hardware listener")
	}
	return nil
}

// notify returns the callback handed to the platform. It holds only the
// bridge, never the manager, and goes quiet once the bridge is closed.
func (b *Bridge) notify(name string) func() {
	return func() {
		if b.closed.Load() {
			return
		}
		b.events.Add(1)
		b.loop.Post(func() {
			if b.closed.Load() {
				return
			}
			b.log.Debug().Str("event", name).Msg("Hardware changed")
			b.onSync()
		})
	}
}

// Close removes every registration exactly once. It is safe to call
// more than once and on a bridge that was never started.
func (b *Bridge) Close() error {
	b.closed.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releaseLocked()
}

func (b *Bridge) releaseLocked() error {
	var errs []error
	for _, r := range b.regs {
		if r.remove == nil {
			continue
		}
		remove := r.remove
		r.remove = nil
		b.removed++
		if err := remove(); err != nil {
			b.log.Warn().Err(err).Str("event", r.name).Msg("Failed to remove hardware listener")
			errs = append(errs, err)
		}
	}
	b.regs = nil
	return errors.Join(errs...)
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Registered: b.registered,
		Removed:    b.removed,
		Events:     int(b.events.Load()),
	}
}
